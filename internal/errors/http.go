package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// HTTPCode represents application-level error codes in HTTP responses.
type HTTPCode string

const (
	HTTPCodeInvalidRequest  HTTPCode = "INVALID_REQUEST"
	HTTPCodeInvalidName     HTTPCode = "INVALID_NAME"
	HTTPCodeAlreadyExists   HTTPCode = "ALREADY_EXISTS"
	HTTPCodeNotFound        HTTPCode = "NOT_FOUND"
	HTTPCodeVersionConflict HTTPCode = "VERSION_CONFLICT"
	HTTPCodeInternalError   HTTPCode = "INTERNAL_ERROR"
	HTTPCodeRateLimited     HTTPCode = "RATE_LIMITED"
)

// ErrorResponse is the standard error envelope for non-2xx responses.
type ErrorResponse struct {
	Status    string   `json:"status"`
	ErrorCode HTTPCode `json:"error_code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id,omitempty"`
}

// Handler maps store errors onto HTTP responses.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// HandleError writes the HTTP response for a store operation error.
// Version conflicts are not handled here: the REST contract requires the
// conflict body to be the current record, which the request handler owns.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	switch GetCode(err) {
	case ErrCodeInvalidName:
		h.WriteErrorResponse(w, http.StatusBadRequest, HTTPCodeInvalidName, err.Error(), requestID)
	case ErrCodeMalformedInput:
		h.WriteErrorResponse(w, http.StatusBadRequest, HTTPCodeInvalidRequest, err.Error(), requestID)
	case ErrCodeAlreadyExists:
		h.WriteErrorResponse(w, http.StatusConflict, HTTPCodeAlreadyExists, err.Error(), requestID)
	case ErrCodeNotFound:
		h.WriteErrorResponse(w, http.StatusNotFound, HTTPCodeNotFound, err.Error(), requestID)
	case ErrCodeVersionConflict:
		h.WriteErrorResponse(w, http.StatusConflict, HTTPCodeVersionConflict, err.Error(), requestID)
	default:
		// StorageIO and anything unexpected: fatal for this request only.
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		h.WriteErrorResponse(w, http.StatusInternalServerError, HTTPCodeInternalError, "internal server error", requestID)
	}
}

// WriteErrorResponse writes a formatted error envelope.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode HTTPCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a 400 validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, HTTPCodeInvalidRequest, message, requestID)
}
