package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized marks an invalid or expired token, or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport marks a request that never produced an HTTP response.
	ErrTransport = errors.New("booking api unreachable")
)

// APIError is a non-2xx answer of the booking API.
type APIError struct {
	Status  int
	Message string
	Body    string

	unauthorized bool
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("booking api status=%d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("booking api status=%d, body=%s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.unauthorized {
		return ErrUnauthorized
	}
	return nil
}

// RemoteMessage returns the message the API put in the error body, if any.
func RemoteMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{
		Status:  status,
		Body:    strings.TrimSpace(string(body)),
		Message: extractMessage(body),
	}
	e.unauthorized = status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		looksLikeTokenFailure(e.Message)
	return e
}

func extractMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if s, ok := payload.Error.(string); ok && s != "" {
		return s
	}
	if m, ok := payload.Error.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return payload.Msg
}

func looksLikeTokenFailure(msg string) bool {
	m := strings.ToLower(msg)
	if !strings.Contains(m, "token") {
		return false
	}
	for _, w := range []string{"expir", "invalid", "inválido", "invalido", "caducad", "malformed"} {
		if strings.Contains(m, w) {
			return true
		}
	}
	return false
}
