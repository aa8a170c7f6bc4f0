package eventbus

// Kind identifies an event: the domain that emits it and its type within the
// domain. The envelope carries it as "<domain>.<type>".
type Kind struct {
	Domain Domain
	Type   string
}

func (k Kind) String() string {
	return string(k.Domain) + "." + k.Type
}

var (
	TransitionCompleted = Kind{Domain: DomainTransition, Type: "completed"}
	TransitionRejected  = Kind{Domain: DomainTransition, Type: "rejected"}
	WorkflowChanged     = Kind{Domain: DomainWorkflow, Type: "changed"}
	ValidationCompleted = Kind{Domain: DomainValidation, Type: "completed"}
	ActionDispatched    = Kind{Domain: DomainAction, Type: "dispatched"}
)

// Kinds lists every event kind the engines emit.
var Kinds = []Kind{
	TransitionCompleted,
	TransitionRejected,
	WorkflowChanged,
	ValidationCompleted,
	ActionDispatched,
}

// TransitionPayload is the payload of transition.completed and
// transition.rejected events.
type TransitionPayload struct {
	WorkflowID       string   `json:"workflow_id"`
	TransitionID     string   `json:"transition_id"`
	FromStatus       string   `json:"from_status"`
	ToStatus         string   `json:"to_status"`
	EntityID         string   `json:"entity_id,omitempty"`
	Success          bool     `json:"success"`
	FailedConditions []string `json:"failed_conditions,omitempty"`
	Actions          []string `json:"actions,omitempty"`
}

// WorkflowChangePayload is the payload of workflow.changed events.
type WorkflowChangePayload struct {
	WorkflowID string `json:"workflow_id"`
	Operation  string `json:"operation"`
	Target     string `json:"target,omitempty"`
}

// ValidationPayload is the payload of validation.completed events.
type ValidationPayload struct {
	EntityID     string         `json:"entity_id,omitempty"`
	Results      int            `json:"results"`
	Passed       int            `json:"passed"`
	OverallScore int            `json:"overall_score"`
	Issues       map[string]int `json:"issues"`
}

// ActionPayload is the payload of action.dispatched events.
type ActionPayload struct {
	ActionID     string `json:"action_id"`
	ActionType   string `json:"action_type"`
	WorkflowID   string `json:"workflow_id,omitempty"`
	TransitionID string `json:"transition_id,omitempty"`
	EntityID     string `json:"entity_id,omitempty"`
	Field        string `json:"field,omitempty"`
	Value        any    `json:"value,omitempty"`
	Description  string `json:"description,omitempty"`
}

// v1Payloads maps each kind to the typed payload decodeV1 fills.
var v1Payloads = map[Kind]func() any{
	TransitionCompleted: func() any { return &TransitionPayload{} },
	TransitionRejected:  func() any { return &TransitionPayload{} },
	WorkflowChanged:     func() any { return &WorkflowChangePayload{} },
	ValidationCompleted: func() any { return &ValidationPayload{} },
	ActionDispatched:    func() any { return &ActionPayload{} },
}

// DefaultSchemas returns the required payload fields of every event kind.
func DefaultSchemas() []PayloadSchema {
	required := map[Kind][]string{
		TransitionCompleted: {"workflow_id", "transition_id", "from_status", "to_status", "success"},
		TransitionRejected:  {"workflow_id", "transition_id", "from_status", "success"},
		WorkflowChanged:     {"workflow_id", "operation"},
		ValidationCompleted: {"results", "passed", "overall_score"},
		ActionDispatched:    {"action_id", "action_type"},
	}
	schemas := make([]PayloadSchema, 0, len(Kinds))
	for _, k := range Kinds {
		schemas = append(schemas, PayloadSchema{
			SchemaVersion: SchemaVersionV1,
			EventType:     k.String(),
			Required:      required[k],
		})
	}
	return schemas
}
