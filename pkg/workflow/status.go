package workflow

import (
	"context"

	"github.com/goclaw/taskflow/pkg/definition"
)

// StatusUpdate patches a status. Nil fields are left alone.
type StatusUpdate struct {
	ID          *string                    `json:"id,omitempty"`
	Name        *string                    `json:"name,omitempty"`
	Description *string                    `json:"description,omitempty"`
	Color       *string                    `json:"color,omitempty"`
	Category    *definition.StatusCategory `json:"category,omitempty"`
	IsLocked    *bool                      `json:"isLocked,omitempty"`
}

// AddStatus appends a status after the current last one.
func (e *Engine) AddStatus(ctx context.Context, workflowID string, status definition.Status) (*definition.Workflow, error) {
	return e.mutate(ctx, workflowID, "add_status", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		status.Order = 0
		for _, s := range wf.Statuses {
			if s.Order >= status.Order {
				status.Order = s.Order + 1
			}
		}
		wf.Statuses = append(wf.Statuses, status)
		return status.ID, nil
	})
}

// UpdateStatus merges update into a status. A locked status keeps its id,
// its name and its lock; ImportWorkflow is the only way to unlock it. Renaming the id of an unlocked status rewrites every transition and
// the workflow default that point at it.
func (e *Engine) UpdateStatus(ctx context.Context, workflowID, statusID string, update StatusUpdate) (*definition.Workflow, error) {
	return e.mutate(ctx, workflowID, "update_status", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		idx := wf.StatusIndex(statusID)
		if idx < 0 {
			return "", &definition.NotFoundError{EntityType: "status", ID: statusID}
		}
		s := &wf.Statuses[idx]

		changesID := update.ID != nil && *update.ID != s.ID
		renames := update.Name != nil && *update.Name != s.Name
		unlocks := update.IsLocked != nil && !*update.IsLocked
		switch {
		case s.IsLocked && (changesID || renames):
			return "", &definition.LockedEntityError{EntityType: "status", ID: statusID, Reason: "id and name cannot change"}
		case s.IsLocked && unlocks:
			return "", &definition.LockedEntityError{EntityType: "status", ID: statusID, Reason: "lock can only be removed by reimporting the workflow"}
		}

		if update.Name != nil {
			s.Name = *update.Name
		}
		if update.Description != nil {
			s.Description = *update.Description
		}
		if update.Color != nil {
			s.Color = *update.Color
		}
		if update.Category != nil {
			s.Category = *update.Category
		}
		if update.IsLocked != nil {
			s.IsLocked = *update.IsLocked
		}
		if changesID {
			renameStatus(wf, statusID, *update.ID)
			return *update.ID, nil
		}
		return statusID, nil
	})
}

func renameStatus(wf *definition.Workflow, from, to string) {
	wf.Statuses[wf.StatusIndex(from)].ID = to
	for i := range wf.Transitions {
		t := &wf.Transitions[i]
		if t.FromStatus == from {
			t.FromStatus = to
		}
		if t.ToStatus == from {
			t.ToStatus = to
		}
	}
	if wf.DefaultStatusID == from {
		wf.DefaultStatusID = to
	}
}

// DeleteStatus removes a status and every transition entering or leaving it.
// Locked statuses fail with *definition.LockedEntityError; the default status
// and the last remaining status fail with *definition.ValidationError.
func (e *Engine) DeleteStatus(ctx context.Context, workflowID, statusID string) (*definition.Workflow, error) {
	return e.mutate(ctx, workflowID, "delete_status", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		idx := wf.StatusIndex(statusID)
		if idx < 0 {
			return "", &definition.NotFoundError{EntityType: "status", ID: statusID}
		}
		switch {
		case wf.Statuses[idx].IsLocked:
			return "", &definition.LockedEntityError{EntityType: "status", ID: statusID}
		case len(wf.Statuses) == 1:
			return "", definition.Invalid("workflow", wf.ID, "statuses", "cannot delete the last status %q", statusID)
		case wf.DefaultStatusID == statusID:
			return "", definition.Invalid("workflow", wf.ID, "defaultStatusId", "cannot delete default status %q", statusID)
		}

		wf.Statuses = append(wf.Statuses[:idx], wf.Statuses[idx+1:]...)
		kept := wf.Transitions[:0]
		for _, t := range wf.Transitions {
			if t.FromStatus != statusID && t.ToStatus != statusID {
				kept = append(kept, t)
			}
		}
		wf.Transitions = kept
		return statusID, nil
	})
}

// ReorderStatuses puts the statuses in the order of ids, which must name
// every status exactly once, and renumbers Order from zero.
func (e *Engine) ReorderStatuses(ctx context.Context, workflowID string, ids []string) (*definition.Workflow, error) {
	return e.mutate(ctx, workflowID, "reorder_statuses", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		if len(ids) != len(wf.Statuses) {
			return "", definition.Invalid("workflow", wf.ID, "statuses", "order lists %d statuses, workflow has %d", len(ids), len(wf.Statuses))
		}
		reordered := make([]definition.Status, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			s, ok := wf.Status(id)
			if !ok || seen[id] {
				return "", definition.Invalid("workflow", wf.ID, "statuses", "order must name every status once, got %q", id)
			}
			seen[id] = true
			s.Order = len(reordered)
			reordered = append(reordered, s)
		}
		wf.Statuses = reordered
		return "", nil
	})
}
