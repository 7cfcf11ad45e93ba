package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"profile-service/validation"

	"go.uber.org/zap"
)

const serverErrorMessage = "Server Error"

type AppHandler func(http.ResponseWriter, *http.Request) error

// AppError carries the status and client-facing body for a failed request.
// When Errors is set the body is {"errors": [...]}, otherwise {"msg": Message}.
type AppError struct {
	Status  int
	Message string
	Errors  []validation.FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(status int, message string, err error) *AppError {
	return &AppError{Status: status, Message: message, Err: err}
}

// NewFieldErrors reports one or more field-level failures as a 400.
func NewFieldErrors(errs ...validation.FieldError) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: "Validation failed", Errors: errs}
}

type messageResponse struct {
	Msg string `json:"msg"`
}

type fieldErrorsResponse struct {
	Errors []validation.FieldError `json:"errors"`
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.status = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func ErrorHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if recovered := recover(); recovered != nil {
				zap.L().Error("panic recovered",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", recovered),
				)
				if !rw.wroteHeader {
					writeJSON(rw, http.StatusInternalServerError, messageResponse{Msg: serverErrorMessage})
				}
			}
		}()

		if err := handler(rw, r); err != nil {
			handleError(rw, r, err)
		}
	}
}

func handleError(w *responseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var body interface{} = messageResponse{Msg: serverErrorMessage}

	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		if status < http.StatusInternalServerError {
			if len(appErr.Errors) > 0 {
				body = fieldErrorsResponse{Errors: appErr.Errors}
			} else {
				body = messageResponse{Msg: appErr.Message}
			}
		}
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	if w.wroteHeader {
		return
	}
	writeJSON(w, status, body)
}

// WriteJSON renders body with the given status as application/json.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	return writeJSON(w, status, body)
}

// WriteMessage renders {"msg": message}.
func WriteMessage(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, messageResponse{Msg: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
