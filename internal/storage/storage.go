// Package storage submits staged uploads to a file storage provider.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/vidfriends/uploader/internal/models"
)

var (
	// ErrUnauthorized indicates the provider rejected the caller's access credential.
	ErrUnauthorized = errors.New("storage: access credential rejected")
	// ErrInvalidObject indicates the object cannot be submitted as given.
	ErrInvalidObject = errors.New("storage: invalid object")
)

// Object is a payload ready to be written to the provider.
type Object struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Provider creates files in a remote store. accessToken is the caller's
// bearer credential; providers that authenticate otherwise may ignore it.
type Provider interface {
	Name() string
	Create(ctx context.Context, accessToken string, obj Object) (models.StoredFile, error)
}

func validateObject(obj Object) error {
	if obj.Name == "" {
		return errors.Join(ErrInvalidObject, errors.New("name is required"))
	}
	if obj.Body == nil {
		return errors.Join(ErrInvalidObject, errors.New("body is required"))
	}
	return nil
}
