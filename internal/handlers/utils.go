package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cinevault/apiserver/internal/services"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextIdentityKey contextKey = "identity"

func withIdentity(ctx context.Context, identity services.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

func identityFromContext(ctx context.Context) (services.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(services.Identity)
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		return services.Identity{}, errors.New("missing subject")
	}
	return identity, nil
}

// requesterID returns the authenticated subject, or "" outside RequireAuth.
func requesterID(r *http.Request) string {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		return ""
	}
	return identity.Subject
}

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the error payload.
type ErrorResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Details []services.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, value any) {
	writeJSON(w, status, DataResponse{Data: value})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: message})
}

// writeServiceError maps service errors onto HTTP statuses. Unclassified
// errors are logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Status:  "error",
			Message: verr.Message,
			Details: verr.Details,
		})
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, conflictMessage(err))
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// conflictMessage drops the ": conflict" suffix added by the services.
func conflictMessage(err error) string {
	msg := err.Error()
	if trimmed := strings.TrimSuffix(msg, ": "+services.ErrConflict.Error()); trimmed != "" {
		return trimmed
	}
	return msg
}

// decodeJSON reads a single JSON object into dst. Unknown fields and
// malformed bodies become validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return bodyError(errors.New("body must contain a single JSON object"))
	}
	return nil
}

func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	path, message := "body", err.Error()
	switch {
	case errors.Is(err, io.EOF):
		message = "request body is required"
	case errors.As(err, &typeErr) && typeErr.Field != "":
		path, message = typeErr.Field, "invalid type, expected "+typeErr.Type.String()
	case errors.As(err, &maxErr):
		message = "request body is too large"
	case strings.HasPrefix(message, "json: unknown field "):
		path = strings.Trim(strings.TrimPrefix(message, "json: unknown field "), `"`)
		message = "unknown field"
	}
	return &services.ValidationError{
		Message: "Invalid request body",
		Details: []services.FieldError{{Path: path, Message: message}},
	}
}

// parsePagination reads 1-indexed page and pageSize. Zero means "use the
// service default".
func parsePagination(r *http.Request) (page, pageSize int, err error) {
	query := r.URL.Query()
	if page, err = parsePositive(query.Get("page"), "page"); err != nil {
		return 0, 0, err
	}
	rawSize := query.Get("pageSize")
	if strings.TrimSpace(rawSize) == "" {
		rawSize = query.Get("limit")
	}
	if pageSize, err = parsePositive(rawSize, "pageSize"); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func parsePositive(raw, path string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, queryError(path, "must be a positive integer")
	}
	return value, nil
}

func queryError(path, message string) error {
	return &services.ValidationError{
		Message: "Validation failed",
		Details: []services.FieldError{{Path: path, Message: message}},
	}
}
