// Package phasegraph provides a read-only, validated view of one workflow's
// phases and transition metadata. A Graph is built from already-loaded
// configuration and answers pure queries; it performs no I/O and has no side
// effects.
package phasegraph

import (
	"fmt"
	"sort"

	"github.com/taskdesk/taskdesk/internal/domain/entity"
)

// Graph is an immutable phase configuration for a single workflow. Phases
// are kept in an id-keyed store with a separate order index, avoiding cyclic
// references between tasks, workflows and phases.
type Graph struct {
	workflowID int64
	ordered    []*entity.Phase
	byID       map[int64]*entity.Phase
	start      *entity.Phase
	edges      map[edgeKey]*entity.Transition
}

type edgeKey struct {
	from int64
	to   int64
}

// New validates the workflow configuration and builds a Graph. Invariant
// violations are construction errors, never silently resolved: exactly one
// start phase, at least one end phase, unique and dense order values, and
// transition endpoints inside the workflow.
func New(workflowID int64, phases []*entity.Phase, transitions []*entity.Transition) (*Graph, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("%w: workflow %d has no phases", ErrNoPhases, workflowID)
	}

	g := &Graph{
		workflowID: workflowID,
		ordered:    make([]*entity.Phase, 0, len(phases)),
		byID:       make(map[int64]*entity.Phase, len(phases)),
		edges:      make(map[edgeKey]*entity.Transition, len(transitions)),
	}

	seenOrder := make(map[int]int64, len(phases))
	hasEnd := false

	for _, p := range phases {
		if p.WorkflowID != workflowID {
			return nil, fmt.Errorf("%w: phase %d belongs to workflow %d, not %d",
				ErrForeignPhase, p.ID, p.WorkflowID, workflowID)
		}
		if other, dup := seenOrder[p.Order]; dup {
			return nil, fmt.Errorf("%w: phases %d and %d share order %d",
				ErrDuplicateOrder, other, p.ID, p.Order)
		}
		seenOrder[p.Order] = p.ID

		if p.IsStartPhase {
			if g.start != nil {
				return nil, fmt.Errorf("%w: phases %d and %d", ErrMultipleStartPhases, g.start.ID, p.ID)
			}
			g.start = p
		}
		if p.IsEndPhase {
			hasEnd = true
		}

		g.byID[p.ID] = p
		g.ordered = append(g.ordered, p)
	}

	if g.start == nil {
		return nil, fmt.Errorf("%w: workflow %d", ErrNoStartPhase, workflowID)
	}
	if !hasEnd {
		return nil, fmt.Errorf("%w: workflow %d", ErrNoEndPhase, workflowID)
	}

	sort.Slice(g.ordered, func(i, j int) bool {
		return g.ordered[i].Order < g.ordered[j].Order
	})

	// Dense order check: consecutive positions after sorting.
	for i := 1; i < len(g.ordered); i++ {
		if g.ordered[i].Order != g.ordered[i-1].Order+1 {
			return nil, fmt.Errorf("%w: gap between order %d and %d",
				ErrSparseOrder, g.ordered[i-1].Order, g.ordered[i].Order)
		}
	}

	for _, tr := range transitions {
		if _, ok := g.byID[tr.FromPhaseID]; !ok {
			return nil, fmt.Errorf("%w: transition %d from phase %d", ErrForeignTransition, tr.ID, tr.FromPhaseID)
		}
		if _, ok := g.byID[tr.ToPhaseID]; !ok {
			return nil, fmt.Errorf("%w: transition %d to phase %d", ErrForeignTransition, tr.ID, tr.ToPhaseID)
		}
		g.edges[edgeKey{tr.FromPhaseID, tr.ToPhaseID}] = tr
	}

	return g, nil
}

// WorkflowID returns the workflow this graph describes.
func (g *Graph) WorkflowID() int64 {
	return g.workflowID
}

// StartPhase returns the workflow's single start phase.
func (g *Graph) StartPhase() *entity.Phase {
	return g.start
}

// PhasesOrdered returns all phases sorted by order. The returned slice must
// not be mutated.
func (g *Graph) PhasesOrdered() []*entity.Phase {
	return g.ordered
}

// Phase returns the phase with the given id, or false if it does not belong
// to this workflow.
func (g *Graph) Phase(id int64) (*entity.Phase, bool) {
	p, ok := g.byID[id]
	return p, ok
}

// Contains reports whether the phase belongs to this workflow.
func (g *Graph) Contains(id int64) bool {
	_, ok := g.byID[id]
	return ok
}

// NextPhase returns the phase following the given one by order, or nil if it
// is the last.
func (g *Graph) NextPhase(id int64) *entity.Phase {
	for i, p := range g.ordered {
		if p.ID == id && i+1 < len(g.ordered) {
			return g.ordered[i+1]
		}
	}
	return nil
}

// PrevPhase returns the phase preceding the given one by order, or nil if it
// is the first.
func (g *Graph) PrevPhase(id int64) *entity.Phase {
	for i, p := range g.ordered {
		if p.ID == id && i > 0 {
			return g.ordered[i-1]
		}
	}
	return nil
}

// IsRoleAllowed reports whether the role may act on the phase. An empty
// allowed-roles list means the phase is open to any role of the tenant.
func (g *Graph) IsRoleAllowed(phaseID int64, role string) bool {
	p, ok := g.byID[phaseID]
	if !ok {
		return false
	}
	if len(p.AllowedRoles) == 0 {
		return true
	}
	for _, r := range p.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether moving into the phase is approval-gated.
func (g *Graph) RequiresApproval(phaseID int64) bool {
	p, ok := g.byID[phaseID]
	return ok && p.RequiresApproval
}

// IsEndPhase reports whether the phase is terminal.
func (g *Graph) IsEndPhase(phaseID int64) bool {
	p, ok := g.byID[phaseID]
	return ok && p.IsEndPhase
}

// Edge returns the advisory transition metadata for (from, to), or nil when
// no edge is declared. Absence of an edge never blocks a move.
func (g *Graph) Edge(fromID, toID int64) *entity.Transition {
	return g.edges[edgeKey{fromID, toID}]
}

// NotifyRoles returns the roles to notify for the (from, to) edge, or nil
// when no edge is declared.
func (g *Graph) NotifyRoles(fromID, toID int64) []string {
	if tr := g.edges[edgeKey{fromID, toID}]; tr != nil {
		return tr.NotifyRoles
	}
	return nil
}
