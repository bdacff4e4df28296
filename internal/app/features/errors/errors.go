// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// ErrorLogger wraps the zap logger for error logging.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{logger: logger}
}

// Log logs an error with the given message and error.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.LogWithFields(r, msg, err)
}

// LogWithFields logs an error with additional fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, allFields...)
}

// Respond writes err as a JSON error body. Library errors carry their own
// status and message; anything else is logged under msg and reported as 500.
// Storage failures are logged too since they point at the blob backend.
func (e *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := coursetree.HTTPStatus(err)
	userMsg := coursetree.Message(err)

	if status == http.StatusInternalServerError || userMsg == "" {
		e.Log(r, msg, err)
		jsonutil.InternalError(w, "internal error")
		return
	}
	if status == http.StatusBadGateway {
		e.Log(r, msg, err)
	}
	jsonutil.Fail(w, status, coursetree.KindName(err), userMsg)
}

// NotFound is mounted as the router's fallback for unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotFound(w, "not found")
}

// MethodNotAllowed is mounted as the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
