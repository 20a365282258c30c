package phasegraph

import "errors"

var (
	// ErrNoPhases is returned when a workflow has no phases at all.
	ErrNoPhases = errors.New("workflow has no phases")

	// ErrNoStartPhase is returned when no phase is flagged as the start.
	ErrNoStartPhase = errors.New("workflow has no start phase")

	// ErrMultipleStartPhases is returned when more than one phase is
	// flagged as the start.
	ErrMultipleStartPhases = errors.New("workflow has multiple start phases")

	// ErrNoEndPhase is returned when no phase is flagged as an end.
	ErrNoEndPhase = errors.New("workflow has no end phase")

	// ErrDuplicateOrder is returned when two phases share an order value.
	ErrDuplicateOrder = errors.New("duplicate phase order")

	// ErrSparseOrder is returned when phase order values are not dense.
	ErrSparseOrder = errors.New("phase order values are not dense")

	// ErrForeignPhase is returned when a phase belongs to another workflow.
	ErrForeignPhase = errors.New("phase belongs to another workflow")

	// ErrForeignTransition is returned when a transition endpoint is not a
	// phase of the workflow.
	ErrForeignTransition = errors.New("transition endpoint outside workflow")
)
