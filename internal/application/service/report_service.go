package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/taskdesk/taskdesk/internal/application/port"
)

const historySheet = "Phase History"

// ReportService renders phase history as a downloadable workbook.
type ReportService interface {
	// ExportHistory renders the task's full phase history as an xlsx
	// workbook, oldest row first.
	ExportHistory(ctx context.Context, actorID, taskID int64) (*bytes.Buffer, error)
}

type reportServiceImpl struct {
	tasks     port.TaskRepository
	workflows port.WorkflowRepository
	history   port.HistoryRepository
	guard     *TenantGuard
	logger    Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	tasks port.TaskRepository,
	workflows port.WorkflowRepository,
	history port.HistoryRepository,
	guard *TenantGuard,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		tasks:     tasks,
		workflows: workflows,
		history:   history,
		guard:     guard,
		logger:    logger,
	}
}

func (s *reportServiceImpl) ExportHistory(ctx context.Context, actorID, taskID int64) (*bytes.Buffer, error) {
	actor, err := s.guard.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckCompany(actor, task.CompanyID); err != nil {
		return nil, err
	}

	entries, err := s.history.GetByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	phaseNames := make(map[int64]string)
	phases, err := s.workflows.GetPhases(ctx, task.WorkflowID)
	if err != nil {
		return nil, err
	}
	for _, p := range phases {
		phaseNames[p.ID] = p.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []string{"#", "From Phase", "To Phase", "Actor ID", "Note", "At"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		s.setCell(f, cell, h)
	}

	for row, entry := range entries {
		from := ""
		if entry.FromPhaseID != nil {
			from = s.phaseName(phaseNames, *entry.FromPhaseID)
		}
		values := []interface{}{
			row + 1,
			from,
			s.phaseName(phaseNames, entry.ToPhaseID),
			entry.ActorID,
			entry.Note,
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			s.setCell(f, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("History exported",
		"task_id", task.ID,
		"rows", len(entries))

	return buf, nil
}

func (s *reportServiceImpl) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(historySheet, cell, value); err != nil {
		s.logger.Error("Failed to set cell value", "cell", cell, "error", err)
	}
}

// phaseName falls back to the raw id for phases from another workflow
// version.
func (s *reportServiceImpl) phaseName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "phase " + strconv.FormatInt(id, 10)
}
