// Package client drives sequential video uploads against the uploader server,
// refreshing the access credential at most once per item.
package client

import (
	"context"
	"errors"

	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/videos"
)

// Item messages shown to the user.
const (
	MessageUploaded    = "Upload successful!"
	MessageAuthExpired = "Authentication expired. Please sign in again."
	MessageFailed      = "Upload failed"
)

const noticeNotVideo = "not a video file"

// API is the server surface a Batch needs.
type API interface {
	Upload(ctx context.Context, item *Item) (models.StoredFile, error)
	Refresh(ctx context.Context) error
}

// Item is one selected file and its upload outcome.
type Item struct {
	Name      string
	MediaType string
	Path      string

	Status  models.UploadStatus
	Message string
	Result  *models.StoredFile
}

// Notice reports a file rejected before the batch started.
type Notice struct {
	Name   string
	Reason string
}

// Batch uploads items one at a time.
type Batch struct {
	API API
	// Authenticated mirrors the session flag. A failed refresh clears it.
	Authenticated bool
	// OnUpdate, when set, observes every status change.
	OnUpdate func(Item)
}

type attemptState int

const (
	statePending attemptState = iota
	stateFirstAttempt
	stateRefreshPending
	stateSecondAttempt
	stateDone
)

// Run filters items to videos and uploads them sequentially. Rejected files
// are returned as notices. Items left unprocessed when ctx ends stay pending.
func (b *Batch) Run(ctx context.Context, items []*Item) ([]Notice, error) {
	if !b.Authenticated {
		return nil, ErrNotAuthenticated
	}

	var (
		notices  []Notice
		accepted []*Item
	)
	for _, item := range items {
		if !videos.IsVideo(item.MediaType) {
			notices = append(notices, Notice{Name: item.Name, Reason: noticeNotVideo})
			continue
		}
		item.Status = models.UploadStatusPending
		item.Message = ""
		item.Result = nil
		accepted = append(accepted, item)
	}

	if len(accepted) == 0 {
		return notices, ErrNoVideoFiles
	}

	for _, item := range accepted {
		if err := ctx.Err(); err != nil {
			return notices, err
		}
		b.process(ctx, item)
	}

	return notices, nil
}

func (b *Batch) process(ctx context.Context, item *Item) {
	logger := logging.FromContext(ctx).With("file", item.Name)

	state := statePending
	for state != stateDone {
		switch state {
		case statePending:
			b.update(item, models.UploadStatusUploading, "")
			state = stateFirstAttempt

		case stateFirstAttempt:
			result, err := b.API.Upload(ctx, item)
			if errors.Is(err, ErrUnauthorized) {
				logger.Info("upload unauthorized, refreshing credential")
				state = stateRefreshPending
				continue
			}
			b.settle(item, result, err)
			state = stateDone

		case stateRefreshPending:
			if err := b.API.Refresh(ctx); err != nil {
				logger.Warn("credential refresh failed", "error", err)
				b.Authenticated = false
				b.update(item, models.UploadStatusError, MessageAuthExpired)
				state = stateDone
				continue
			}
			state = stateSecondAttempt

		case stateSecondAttempt:
			result, err := b.API.Upload(ctx, item)
			b.settle(item, result, err)
			state = stateDone
		}
	}
}

func (b *Batch) settle(item *Item, result models.StoredFile, err error) {
	if err == nil {
		item.Result = &result
		b.update(item, models.UploadStatusCompleted, MessageUploaded)
		return
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Message != "" {
		b.update(item, models.UploadStatusError, serverErr.Message)
		return
	}
	b.update(item, models.UploadStatusError, MessageFailed)
}

func (b *Batch) update(item *Item, status models.UploadStatus, message string) {
	item.Status = status
	item.Message = message
	if b.OnUpdate != nil {
		b.OnUpdate(*item)
	}
}
