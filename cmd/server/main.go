package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/taskdesk/taskdesk/internal/application/dispatcher"
	"github.com/taskdesk/taskdesk/internal/application/service"
	"github.com/taskdesk/taskdesk/internal/config"
	"github.com/taskdesk/taskdesk/internal/domain/event"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/repository"
	"github.com/taskdesk/taskdesk/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/taskdesk/taskdesk/internal/interfaces/http"
	"github.com/taskdesk/taskdesk/pkg/database"
	"github.com/taskdesk/taskdesk/pkg/utils"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting taskdesk",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	workflowRepo := repository.NewWorkflowRepository(db, logger)
	taskRepo := repository.NewTaskRepository(db, logger)
	subtaskRepo := repository.NewSubtaskRepository(db, logger)
	historyRepo := repository.NewHistoryRepository(db, logger)
	approvalRepo := repository.NewApprovalRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)

	txManager := sqlite.NewDB(db, logger)

	kvLogger := utils.NewKVLogger(logger)

	// Event dispatcher with the notification recorder subscribed to every
	// lifecycle event type
	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(kvLogger))
	recorder := service.NewNotificationRecorder(notificationRepo, kvLogger)
	for _, t := range []event.Type{
		event.TypeTaskCreated,
		event.TypePhaseChanged,
		event.TypeApprovalRequested,
		event.TypeApprovalResolved,
		event.TypeSubtaskAssigned,
	} {
		disp.SubscribeNamed(t, "notification-recorder", recorder.Handle)
	}

	// Services
	guard := service.NewTenantGuard(userRepo, kvLogger)
	authorizer := service.NewAuthorizer()
	subtaskService := service.NewSubtaskService(subtaskRepo, taskRepo, workflowRepo,
		historyRepo, txManager, guard, disp, kvLogger)
	lifecycleService := service.NewLifecycleService(workflowRepo, taskRepo, historyRepo,
		approvalRepo, txManager, guard, authorizer, subtaskService, disp, kvLogger)
	taskService := service.NewTaskService(taskRepo, workflowRepo, historyRepo,
		txManager, guard, disp, kvLogger)
	workflowService := service.NewWorkflowService(workflowRepo, txManager, guard, kvLogger)
	reportService := service.NewReportService(taskRepo, workflowRepo, historyRepo, guard, kvLogger)

	// HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, lifecycleService, taskService, subtaskService, workflowService, reportService, kvLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	disp.Close()
	logger.Info("Server exited")
}
