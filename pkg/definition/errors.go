package definition

import (
	"fmt"
	"strings"
)

// Problem is one field-level reason a definition was rejected.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Field == "" {
		return p.Message
	}
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// ValidationError is returned when a definition is structurally invalid.
// The rejected definition is never stored.
type ValidationError struct {
	EntityType string
	ID         string
	Problems   []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	subject := e.EntityType
	if e.ID != "" {
		subject = fmt.Sprintf("%s %q", e.EntityType, e.ID)
	}
	return fmt.Sprintf("invalid %s: %s", subject, strings.Join(parts, "; "))
}

// Add appends a problem.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e if it recorded any problem, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError with a single problem.
func Invalid(entityType, id, field, format string, args ...any) *ValidationError {
	e := &ValidationError{EntityType: entityType, ID: id}
	e.Add(field, format, args...)
	return e
}

// LockedEntityError is returned when a mutation targets a locked or
// otherwise protected definition. Nothing is changed.
type LockedEntityError struct {
	EntityType string
	ID         string
	Reason     string
}

func (e *LockedEntityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %q is locked", e.EntityType, e.ID)
	}
	return fmt.Sprintf("%s %q is locked: %s", e.EntityType, e.ID, e.Reason)
}

// NotFoundError indicates that the requested definition does not exist.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}
