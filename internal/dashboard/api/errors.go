package api

import (
	"errors"
	"fmt"
)

var errEmptyBody = errors.New("empty response body")

// TransportError: ответ не получен (сеть, таймаут, отмена).
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError: сервер ответил ошибкой, {success:false} или неразборчивым телом.
type BackendError struct {
	Status    int
	Message   string
	Fields    map[string]string
	Malformed bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Message подбирает текст для уведомления: сообщение сервера или fallback.
func Message(err error, fallback string) string {
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" && !be.Malformed {
		return be.Message
	}
	return fallback
}
