package response

import (
	"errors"
	"net/http"

	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/validation"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeLocked             = "LOCKED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeAutoFixDisabled    = "AUTOFIX_DISABLED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// ErrInvalidInput marks malformed requests that never reach an engine.
var ErrInvalidInput = errors.New("invalid input")

// mapping is how one error kind is presented over HTTP.
type mapping struct {
	status  int
	code    string
	details map[string]any
}

// classify maps an error to its HTTP presentation. The first matching kind
// wins; anything unknown is an internal error.
func classify(err error) mapping {
	var (
		invalid     *definition.ValidationError
		notFound    *definition.NotFoundError
		locked      *definition.LockedEntityError
		transition  *workflow.InvalidTransitionError
		denied      *workflow.PermissionDeniedError
		unavailable *storage.StorageUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		return mapping{http.StatusBadRequest, ErrCodeValidationFailed, map[string]any{
			"entityType": invalid.EntityType,
			"id":         invalid.ID,
			"problems":   invalid.Problems,
		}}
	case errors.As(err, &notFound):
		return mapping{http.StatusNotFound, ErrCodeNotFound, map[string]any{
			"entityType": notFound.EntityType,
			"id":         notFound.ID,
		}}
	case errors.As(err, &locked):
		return mapping{http.StatusLocked, ErrCodeLocked, map[string]any{
			"entityType": locked.EntityType,
			"id":         locked.ID,
		}}
	case errors.As(err, &transition):
		return mapping{http.StatusConflict, ErrCodeConflict, map[string]any{
			"transitionId":   transition.TransitionID,
			"expectedStatus": transition.Expected,
			"actualStatus":   transition.Actual,
		}}
	case errors.As(err, &denied):
		return mapping{http.StatusForbidden, ErrCodeForbidden, map[string]any{
			"transitionId":        denied.TransitionID,
			"requiredPermissions": denied.Required,
		}}
	case errors.Is(err, validation.ErrAutoFixDisabled):
		return mapping{http.StatusConflict, ErrCodeAutoFixDisabled, nil}
	case errors.As(err, &unavailable):
		return mapping{http.StatusServiceUnavailable, ErrCodeServiceUnavailable, nil}
	case errors.Is(err, ErrInvalidInput):
		return mapping{http.StatusBadRequest, ErrCodeBadRequest, nil}
	default:
		return mapping{http.StatusInternalServerError, ErrCodeInternalServer, nil}
	}
}

// HTTPStatusFromError returns the status code HandleError would use.
func HTTPStatusFromError(err error) int {
	return classify(err).status
}

// HandleError writes the response matching err. Internal and storage
// errors are not echoed to the client.
func HandleError(w http.ResponseWriter, err error, requestID string) {
	m := classify(err)
	message := err.Error()
	switch m.status {
	case http.StatusInternalServerError:
		message = "internal server error"
	case http.StatusServiceUnavailable:
		message = "storage unavailable"
	}
	ErrorWithDetails(w, m.status, m.code, message, m.details, requestID)
}
