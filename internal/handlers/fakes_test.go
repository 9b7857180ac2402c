package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/storage"
)

// fakeVerifier accepts every non-empty token not listed in rejected and
// reports "user-<token>" as its subject.
type fakeVerifier struct {
	rejected map[string]bool
	err      error
	tokens   []string
}

func (f *fakeVerifier) Verify(_ context.Context, accessToken string) (models.Principal, error) {
	f.tokens = append(f.tokens, accessToken)
	if f.err != nil {
		return models.Principal{}, f.err
	}
	if accessToken == "" || f.rejected[accessToken] {
		return models.Principal{}, auth.ErrInvalidToken
	}
	return models.Principal{Subject: "user-" + accessToken}, nil
}

type fakeIdentity struct {
	fakeVerifier

	authURL string

	exchangeCreds models.Credentials
	exchangeErr   error
	exchangeCodes []string

	refreshCreds  models.Credentials
	refreshErr    error
	refreshTokens []string
}

func (f *fakeIdentity) AuthCodeURL() string { return f.authURL }

func (f *fakeIdentity) Exchange(_ context.Context, code string) (models.Credentials, error) {
	f.exchangeCodes = append(f.exchangeCodes, code)
	return f.exchangeCreds, f.exchangeErr
}

func (f *fakeIdentity) Refresh(_ context.Context, refreshToken string) (models.Credentials, error) {
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	return f.refreshCreds, f.refreshErr
}

type storageCall struct {
	accessToken string
	name        string
	mediaType   string
	size        int64
	payload     []byte
	stagedPath  string
}

type fakeStorage struct {
	mu     sync.Mutex
	calls  []storageCall
	result models.StoredFile
	err    error
}

func (f *fakeStorage) Name() string { return "fake" }

func (f *fakeStorage) Create(_ context.Context, accessToken string, obj storage.Object) (models.StoredFile, error) {
	payload, err := io.ReadAll(obj.Body)
	if err != nil {
		return models.StoredFile{}, err
	}

	call := storageCall{
		accessToken: accessToken,
		name:        obj.Name,
		mediaType:   obj.MediaType,
		size:        obj.Size,
		payload:     payload,
	}
	if file, ok := obj.Body.(*os.File); ok {
		call.stagedPath = file.Name()
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	return f.result, f.err
}

func (f *fakeStorage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLedger struct {
	mu      sync.Mutex
	records []models.UploadRecord
	err     error
	owners  []string
	limits  []int
}

func (f *fakeLedger) Record(_ context.Context, record models.UploadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeLedger) Recent(_ context.Context, ownerID string, limit int) ([]models.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.UploadRecord
	for _, record := range f.records {
		if record.OwnerID == ownerID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeLedger) recorded() []models.UploadRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.UploadRecord(nil), f.records...)
}

var errProviderDown = errors.New("provider down")

// multipartBody builds a single-part form with an explicit part content type.
func multipartBody(t *testing.T, field, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func responseCookies(resp *http.Response) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
