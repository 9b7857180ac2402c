package handlers

import (
	"context"

	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/storage"
)

// TokenVerifier resolves an access credential to the account it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (models.Principal, error)
}

// IdentityProvider runs the OAuth2 authorization-code and refresh exchanges.
type IdentityProvider interface {
	TokenVerifier
	AuthCodeURL() string
	Exchange(ctx context.Context, code string) (models.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (models.Credentials, error)
}

// FileStorage creates files with the caller's access credential.
type FileStorage interface {
	Name() string
	Create(ctx context.Context, accessToken string, obj storage.Object) (models.StoredFile, error)
}

// UploadLedger captures the audit trail of completed uploads.
type UploadLedger interface {
	Record(ctx context.Context, record models.UploadRecord) error
	Recent(ctx context.Context, ownerID string, limit int) ([]models.UploadRecord, error)
}
