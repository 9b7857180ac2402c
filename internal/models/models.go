package models

import "time"

// Credentials is the bearer credential pair obtained from the identity provider.
// RefreshToken is empty when the provider did not issue one.
type Credentials struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// HasRefreshToken reports whether a refresh credential accompanies the pair.
func (c Credentials) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Principal identifies the account an access credential was issued to.
type Principal struct {
	Subject string
	Email   string
}

// StoredFile is what the storage provider reports back for a created file.
type StoredFile struct {
	ID          string `json:"fileId"`
	Name        string `json:"fileName"`
	WebViewLink string `json:"webViewLink"`
}

// UploadRecord is an entry in the upload ledger.
type UploadRecord struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	FileID      string    `json:"fileId"`
	FileName    string    `json:"fileName"`
	MediaType   string    `json:"mediaType"`
	Size        int64     `json:"size"`
	WebViewLink string    `json:"webViewLink"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadStatus tracks an item through the client upload loop.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusError     UploadStatus = "error"
)

// Done reports whether the status is terminal.
func (s UploadStatus) Done() bool {
	return s == UploadStatusCompleted || s == UploadStatusError
}
