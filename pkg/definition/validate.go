package definition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goclaw/taskflow/pkg/condition"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report problems with the JSON field names clients send.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct constraints and graph integrity: unique status ids,
// a default status that exists, unique transition ids, no dangling
// transition endpoints and operators that are allowed on transitions.
func (w *Workflow) Validate() error {
	verr := &ValidationError{EntityType: "workflow", ID: w.ID}
	collectTagProblems(verr, validate.Struct(w))

	statuses := make(map[string]struct{}, len(w.Statuses))
	for i, s := range w.Statuses {
		if s.ID == "" {
			continue
		}
		if _, dup := statuses[s.ID]; dup {
			verr.Add(fmt.Sprintf("statuses[%d].id", i), "duplicate status id %q", s.ID)
		}
		statuses[s.ID] = struct{}{}
		if s.Category != "" && !s.Category.Valid() {
			verr.Add(fmt.Sprintf("statuses[%d].category", i), "unknown category %q", s.Category)
		}
	}

	if w.DefaultStatusID != "" {
		if _, ok := statuses[w.DefaultStatusID]; !ok {
			verr.Add("defaultStatusId", "references unknown status %q", w.DefaultStatusID)
		}
	}

	transitions := make(map[string]struct{}, len(w.Transitions))
	for i, t := range w.Transitions {
		prefix := fmt.Sprintf("transitions[%d]", i)
		if t.ID != "" {
			if _, dup := transitions[t.ID]; dup {
				verr.Add(prefix+".id", "duplicate transition id %q", t.ID)
			}
			transitions[t.ID] = struct{}{}
		}
		if _, ok := statuses[t.FromStatus]; t.FromStatus != "" && !ok {
			verr.Add(prefix+".fromStatus", "references unknown status %q", t.FromStatus)
		}
		if _, ok := statuses[t.ToStatus]; t.ToStatus != "" && !ok {
			verr.Add(prefix+".toStatus", "references unknown status %q", t.ToStatus)
		}
		for j, c := range t.Conditions {
			checkCondition(verr, fmt.Sprintf("%s.conditions[%d]", prefix, j), c, condition.ScopeTransition)
		}
	}

	return verr.OrNil()
}

// Validate checks the rule's enums and its condition.
func (r *ValidationRule) Validate() error {
	verr := &ValidationError{EntityType: "rule", ID: r.ID}
	collectTagProblems(verr, validate.Struct(r))

	if r.Type != "" && !r.Type.Valid() {
		verr.Add("type", "unknown rule type %q", r.Type)
	}
	if r.Category != "" && !r.Category.Valid() {
		verr.Add("category", "unknown rule category %q", r.Category)
	}
	if r.Severity != "" && !r.Severity.Valid() {
		verr.Add("severity", "unknown severity %q", r.Severity)
	}
	checkCondition(verr, "condition", r.Condition, condition.ScopeRule)

	if r.AutoFixable() && r.Condition.Field == "" {
		verr.Add("action", "auto_fix requires a condition field to write")
	}

	return verr.OrNil()
}

func checkCondition(verr *ValidationError, path string, c condition.Condition, scope condition.Scope) {
	if c.IsCustom() {
		if c.Type == "" || c.Type == condition.TypeField {
			verr.Add(path+".type", "custom condition needs a type when field is empty")
		}
		return
	}
	if !c.Operator.Valid() {
		verr.Add(path+".operator", "unknown operator %q", c.Operator)
		return
	}
	if !c.Operator.AllowedIn(scope) {
		verr.Add(path+".operator", "operator %q is not allowed in %s conditions", c.Operator, scope)
	}
}

func collectTagProblems(verr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("", "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), "%s", describeTag(fe))
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
