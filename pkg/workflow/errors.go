package workflow

import (
	"fmt"
	"strings"
)

// InvalidTransitionError is returned when the entity is not in the
// transition's source status. The caller should re-read the entity and retry.
type InvalidTransitionError struct {
	WorkflowID   string
	TransitionID string
	Expected     string
	Actual       string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %q requires status %q, entity is in %q", e.TransitionID, e.Expected, e.Actual)
}

// PermissionDeniedError is returned when the actor holds none of the
// permission tags a transition requires.
type PermissionDeniedError struct {
	TransitionID string
	Required     []string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("transition %q requires one of [%s]", e.TransitionID, strings.Join(e.Required, ", "))
}
