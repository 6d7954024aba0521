package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// ErrorResponse maps err onto an HTTP status and writes the JSON error
// envelope. Messages come from domain.ErrorMessage, so internal details of
// non-domain errors never reach the client.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	op := domain.ErrorOp(err)

	status := ErrorCodeToHTTPStatus(code)
	// A collaborator outage is not our bug.
	if errors.Is(err, domain.ErrCollaboratorUnavailable) {
		status = http.StatusServiceUnavailable
	}

	logError(logger, r, err, code, op, status)
	writeJSONError(w, status, code, message, nil)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// ValidationErrorResponse writes field-level validation errors. A single
// failing field also becomes the top-level message. Anything that is not a
// *domain.ValidationError goes through ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		ErrorResponse(w, r, logger, err)
		return
	}

	logger.Info("validation error",
		"op", ve.Op,
		"field_count", len(ve.Fields),
		"path", r.URL.Path,
	)

	message := "Validation failed"
	if len(ve.Fields) == 1 {
		for _, m := range ve.Fields {
			message = m
		}
	}
	writeJSONError(w, http.StatusBadRequest, domain.EINVALID, message, ve.Fields)
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Please log in first")
	ErrorResponse(w, r, logger, err)
}

// ForbiddenResponse is a convenience wrapper for 403 errors.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EFORBIDDEN, "", "You don't have permission to access this resource")
	ErrorResponse(w, r, logger, err)
}

// InternalErrorResponse logs the error and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs 5xx at error level and 4xx at info.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else if status >= 400 {
		logger.Info("client error", attrs...)
	}
}

// JSONError is the error envelope every API error uses.
type JSONError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	var body JSONError
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Fields = fields
	writeJSON(w, status, body)
}
