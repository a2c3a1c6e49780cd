// Package http serves the dashboard JSON API.
//
// This file implements the builder used by every handler to write JSON
// bodies, notification payloads and error responses in one shape.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is the toast the client shows after an action.
type Notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error        string            `json:"error"`
	Details      map[string]string `json:"details,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode   int
	headers      map[string]string
	data         any
	notification *Notification
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the response body. Maps get the notification merged in under
// "notification".
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

func (b *JSONResponseBuilder) Notify(t NotificationType, message string, durationMs int) *JSONResponseBuilder {
	b.notification = &Notification{Type: t, Message: message, Duration: durationMs}
	return b
}

func (b *JSONResponseBuilder) NotifySuccess(message string) *JSONResponseBuilder {
	return b.Notify(NotificationSuccess, message, 3000)
}

func (b *JSONResponseBuilder) NotifyError(message string) *JSONResponseBuilder {
	return b.Notify(NotificationError, message, 5000)
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body := b.data
	if b.notification != nil {
		switch d := body.(type) {
		case map[string]any:
			d["notification"] = b.notification
		case ErrorBody:
			d.Notification = b.notification
			body = d
		case nil:
			body = map[string]any{"notification": b.notification}
		}
	}

	w.WriteHeader(b.statusCode)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError carries an error notification so the client can show
// the failure without leaving the page.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).NotifyError(message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// ValidationError maps validator failures to a 422 with one detail per
// field. Other errors become a 422 without details.
func ValidationError(message string, err error) *JSONResponseBuilder {
	body := ErrorBody{Error: message}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			body.Details[fe.Field()] = describe(fe)
		}
	} else if err != nil {
		body.Details = map[string]string{"error": err.Error()}
	}
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Data(body)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must be a date in %s format", fe.Param())
	default:
		return fmt.Sprintf("failed validation on '%s'", fe.Tag())
	}
}
