package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches server responses rejecting the caller's credential.
	ErrUnauthorized = errors.New("client: unauthorized")
	// ErrNoVideoFiles aborts a batch whose selection holds no video files.
	ErrNoVideoFiles = errors.New("no video files selected")
	// ErrNotAuthenticated refuses a batch started without a session.
	ErrNotAuthenticated = errors.New("not signed in with Google")
)

// ServerError is a non-success response from the upload server.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.Status)
	}
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *ServerError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}
