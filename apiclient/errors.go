package apiclient

import (
	"fmt"
	"net/http"

	"github.com/yeremiapane/restaurant-pos/services"
)

// Error is a failed API call as seen by the dashboard.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, services.ErrUnauthorized) match a 401.
func (e *Error) Is(target error) bool {
	return target == services.ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Conflict reports an HTTP 409.
func (e *Error) Conflict() bool { return e.Status == http.StatusConflict }

func newError(status int, body []byte) *Error {
	if status == http.StatusUnauthorized {
		return &Error{Status: status, Message: services.MsgInvalidToken}
	}
	msg := services.MessageOf(services.DecodeBody(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Status: status, Message: msg}
}
