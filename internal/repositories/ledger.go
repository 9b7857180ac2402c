package repositories

import (
	"context"
	"errors"

	"github.com/vidfriends/uploader/internal/models"
)

var (
	// ErrConflict reports an upload record whose id is already in the ledger.
	ErrConflict = errors.New("upload already recorded")
	// ErrMissingOwner rejects records and queries without an account to scope them to.
	ErrMissingOwner = errors.New("upload owner is required")
)

// UploadLedger records completed uploads. Every record belongs to one account
// and Recent only ever returns that account's records.
type UploadLedger interface {
	Record(ctx context.Context, record models.UploadRecord) error
	Recent(ctx context.Context, ownerID string, limit int) ([]models.UploadRecord, error)
}
