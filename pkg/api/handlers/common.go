// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goclaw/taskflow/pkg/api/middleware"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"
)

// PermissionsHeader carries the actor's permission tags, comma separated.
const PermissionsHeader = "X-Actor-Permissions"

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	maxBodyBytes     = 1 << 20
)

// requestValidator is shared by all handlers. Fields are reported by their
// JSON names.
var requestValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// actorPermissions parses the permissions header. Blank entries are dropped.
func actorPermissions(r *http.Request) []string {
	raw := r.Header.Get(PermissionsHeader)
	if raw == "" {
		return nil
	}
	perms := make([]string, 0, 4)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

// decode reads a JSON body into dst and runs its validate tags. On failure
// it writes the 400 response and returns false.
func decode(w http.ResponseWriter, r *http.Request, log logger.Logger, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		log.DebugContext(r.Context(), "failed to decode request", "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "invalid request body", requestID(r))
		return false
	}
	if err := requestValidator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]interface{}, len(verrs))
			for _, fe := range verrs {
				field := fe.Namespace()
				if _, rest, ok := strings.Cut(field, "."); ok {
					field = rest
				}
				fields[field] = fmt.Sprintf("failed on %q", fe.Tag())
			}
			response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed,
				"request validation failed", map[string]interface{}{"fields": fields}, requestID(r))
			return false
		}
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), requestID(r))
		return false
	}
	return true
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// fail logs server-side errors and writes the mapped error response.
func fail(w http.ResponseWriter, r *http.Request, log logger.Logger, op string, err error) {
	status := response.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), op+" failed", "request_id", requestID(r), "error", err)
	} else {
		log.DebugContext(r.Context(), op+" rejected", "request_id", requestID(r), "status", status, "error", err)
	}
	response.HandleError(w, err, requestID(r))
}
