package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
)

// DriveStorage creates files in a Google Drive folder on behalf of the caller.
type DriveStorage struct {
	folderID string
	endpoint string
	client   *http.Client
}

// DriveOption customises a DriveStorage.
type DriveOption func(*DriveStorage)

// WithDriveEndpoint points the client at an alternative API root.
func WithDriveEndpoint(endpoint string) DriveOption {
	return func(d *DriveStorage) { d.endpoint = endpoint }
}

// WithDriveHTTPClient sets the base client used underneath the bearer transport.
func WithDriveHTTPClient(client *http.Client) DriveOption {
	return func(d *DriveStorage) { d.client = client }
}

// NewDriveStorage returns a Provider writing into folderID.
func NewDriveStorage(folderID string, opts ...DriveOption) *DriveStorage {
	d := &DriveStorage{folderID: folderID}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name identifies the provider in logs and the upload ledger.
func (d *DriveStorage) Name() string { return "drive" }

// Create uploads obj in a single multipart request and returns the file id,
// name and web view link reported by Drive.
func (d *DriveStorage) Create(ctx context.Context, accessToken string, obj Object) (file models.StoredFile, err error) {
	if accessToken == "" {
		return models.StoredFile{}, ErrUnauthorized
	}
	if err := validateObject(obj); err != nil {
		return models.StoredFile{}, err
	}

	ctx, span := logging.StartSpan(ctx, "drive.files.create")
	defer func() { span.EndWithError(err) }()

	svc, err := d.service(ctx, accessToken)
	if err != nil {
		return models.StoredFile{}, err
	}

	meta := &drive.File{Name: obj.Name, MimeType: obj.MediaType}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	created, err := svc.Files.Create(meta).
		Media(obj.Body, googleapi.ContentType(obj.MediaType), googleapi.ChunkSize(0)).
		Fields("id", "name", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			return models.StoredFile{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return models.StoredFile{}, fmt.Errorf("drive create %q: %w", obj.Name, err)
	}

	return models.StoredFile{
		ID:          created.Id,
		Name:        created.Name,
		WebViewLink: created.WebViewLink,
	}, nil
}

func (d *DriveStorage) service(ctx context.Context, accessToken string) (*drive.Service, error) {
	tokenCtx := ctx
	if d.client != nil {
		tokenCtx = context.WithValue(ctx, oauth2.HTTPClient, d.client)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(tokenCtx, src))}
	if d.endpoint != "" {
		opts = append(opts, option.WithEndpoint(d.endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return svc, nil
}
