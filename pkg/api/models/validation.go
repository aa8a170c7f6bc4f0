package models

import "github.com/goclaw/taskflow/pkg/validation"

// AutoFixResponse is the entity after auto-fixes, the ids of the rules whose
// fixes were applied and the report of the re-validated entity.
type AutoFixResponse struct {
	Entity  map[string]any     `json:"entity"`
	Applied []string           `json:"applied"`
	Report  *validation.Report `json:"report"`
}
