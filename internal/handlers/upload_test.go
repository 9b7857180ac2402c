package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/storage"
)

func newUploadRequest(t *testing.T, field, filename, contentType string, payload []byte, accessToken string) *http.Request {
	t.Helper()

	body, formType := multipartBody(t, field, filename, contentType, payload)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", formType)
	if accessToken != "" {
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: accessToken})
	}
	return req
}

func TestUploadHandlerForwardsVideo(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{result: models.StoredFile{
		ID:          "file-1",
		Name:        "clip.mp4",
		WebViewLink: "https://drive.google.com/file/d/file-1/view",
	}}
	ledger := &fakeLedger{}
	verifier := &fakeVerifier{}
	handler := UploadHandler{Verifier: verifier, Storage: store, Ledger: ledger, StagingDir: dir}

	payload := []byte("0123456789")
	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", payload, "tok"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"fileId": "file-1",
		"fileName": "clip.mp4",
		"webViewLink": "https://drive.google.com/file/d/file-1/view"
	}`, rec.Body.String())

	require.Equal(t, 1, store.callCount())
	call := store.calls[0]
	assert.Equal(t, "tok", call.accessToken)
	assert.Equal(t, "clip.mp4", call.name)
	assert.Equal(t, "video/mp4", call.mediaType)
	assert.Equal(t, int64(10), call.size)
	assert.Equal(t, payload, call.payload)

	assert.Equal(t, dir, dirOf(call.stagedPath))
	_, err := os.Stat(call.stagedPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, dirEntries(t, dir))

	require.Len(t, ledger.records, 1)
	assert.Equal(t, "file-1", ledger.records[0].FileID)
	assert.Equal(t, "fake", ledger.records[0].Provider)
	assert.Equal(t, int64(10), ledger.records[0].Size)
	assert.Equal(t, "user-tok", ledger.records[0].OwnerID)
	assert.Equal(t, []string{"tok"}, verifier.tokens)
}

func TestUploadHandlerRequiresAccessCookie(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, StagingDir: dir}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication required. Please sign in with Google."}`, rec.Body.String())
	assert.Zero(t, store.callCount())
	assert.Empty(t, dirEntries(t, dir))
}

func TestUploadHandlerChecksAuthBeforeMediaType(t *testing.T) {
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: &fakeStorage{}, StagingDir: t.TempDir()}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "notes.txt", "text/plain", []byte("data"), ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadHandlerRejectsNonVideo(t *testing.T) {
	for _, token := range []string{"valid", "stale"} {
		t.Run(token, func(t *testing.T) {
			dir := t.TempDir()
			store := &fakeStorage{}
			verifier := &fakeVerifier{rejected: map[string]bool{"stale": true}}
			handler := UploadHandler{Verifier: verifier, Storage: store, StagingDir: dir}

			rec := httptest.NewRecorder()
			handler.Upload(rec, newUploadRequest(t, VideoField, "photo.png", "image/png", []byte("data"), token))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"File must be a video"}`, rec.Body.String())
			assert.Zero(t, store.callCount())
			assert.Empty(t, dirEntries(t, dir))
			assert.Empty(t, verifier.tokens)
		})
	}
}

func TestUploadHandlerMatchesVideoPrefixExactly(t *testing.T) {
	for _, mediaType := range []string{"Video/MP4", "VIDEO/webm"} {
		t.Run(mediaType, func(t *testing.T) {
			store := &fakeStorage{}
			handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, StagingDir: t.TempDir()}

			rec := httptest.NewRecorder()
			handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", mediaType, []byte("data"), "tok"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"File must be a video"}`, rec.Body.String())
			assert.Zero(t, store.callCount())
		})
	}
}

func TestUploadHandlerRequiresVideoField(t *testing.T) {
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: &fakeStorage{}, StagingDir: t.TempDir()}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, "attachment", "clip.mp4", "video/mp4", []byte("data"), "tok"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No video file provided"}`, rec.Body.String())
}

func TestUploadHandlerRejectsNonMultipartBody(t *testing.T) {
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: &fakeStorage{}, StagingDir: t.TempDir()}

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "tok"})
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No video file provided"}`, rec.Body.String())
}

func TestUploadHandlerRejectsOversizedBody(t *testing.T) {
	store := &fakeStorage{}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, StagingDir: t.TempDir(), MaxBytes: 64}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", bytes.Repeat([]byte("v"), 1024), "tok"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"File too large"}`, rec.Body.String())
	assert.Zero(t, store.callCount())
}

func TestUploadHandlerProviderFailure(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{err: errProviderDown}
	ledger := &fakeLedger{}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, Ledger: ledger, StagingDir: dir}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), "tok"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to upload file"}`, rec.Body.String())
	assert.Equal(t, 1, store.callCount())
	assert.Empty(t, dirEntries(t, dir))
	assert.Empty(t, ledger.records)
}

func TestUploadHandlerProviderRejectsCredential(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{err: storage.ErrUnauthorized}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, StagingDir: dir}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), "expired"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication required. Please sign in with Google."}`, rec.Body.String())
	assert.Empty(t, dirEntries(t, dir))
}

func TestUploadHandlerIgnoresLedgerFailure(t *testing.T) {
	store := &fakeStorage{result: models.StoredFile{ID: "file-1", Name: "clip.mp4"}}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Storage: store, Ledger: &fakeLedger{err: errors.New("db down")}, StagingDir: t.TempDir()}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), "tok"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadHandlerRecent(t *testing.T) {
	ledger := &fakeLedger{records: []models.UploadRecord{{ID: "u1", OwnerID: "user-tok", FileID: "file-1", FileName: "clip.mp4", Provider: "drive"}}}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Ledger: ledger}

	req := httptest.NewRequest(http.MethodGet, "/uploads/recent?limit=5", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "tok"})
	rec := httptest.NewRecorder()

	handler.Recent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Uploads []models.UploadRecord `json:"uploads"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Uploads, 1)
	assert.Equal(t, "file-1", body.Uploads[0].FileID)
	assert.Equal(t, []int{5}, ledger.limits)
	assert.Equal(t, []string{"user-tok"}, ledger.owners)
	assert.NotContains(t, rec.Body.String(), "user-tok", "owner ids stay server-side")
}

func TestUploadHandlerRecentOnlyShowsCallersUploads(t *testing.T) {
	ledger := &fakeLedger{records: []models.UploadRecord{
		{ID: "u1", OwnerID: "user-alice", FileID: "alice-file", FileName: "alice.mp4"},
		{ID: "u2", OwnerID: "user-bob", FileID: "bob-file", FileName: "bob.mp4"},
	}}
	handler := UploadHandler{Verifier: &fakeVerifier{}, Ledger: ledger}

	req := httptest.NewRequest(http.MethodGet, "/uploads/recent", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "alice"})
	rec := httptest.NewRecorder()

	handler.Recent(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Uploads []models.UploadRecord `json:"uploads"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Uploads, 1)
	assert.Equal(t, "alice-file", body.Uploads[0].FileID)
}

func TestUploadHandlerRecentGuards(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		UploadHandler{Verifier: &fakeVerifier{}, Ledger: &fakeLedger{}}.Recent(rec, httptest.NewRequest(http.MethodGet, "/uploads/recent", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("forged credential", func(t *testing.T) {
		ledger := &fakeLedger{}
		req := httptest.NewRequest(http.MethodGet, "/uploads/recent", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "forged"})
		rec := httptest.NewRecorder()
		UploadHandler{Verifier: &fakeVerifier{rejected: map[string]bool{"forged": true}}, Ledger: ledger}.Recent(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, ledger.owners)
	})

	t.Run("no verifier", func(t *testing.T) {
		ledger := &fakeLedger{}
		req := httptest.NewRequest(http.MethodGet, "/uploads/recent", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		UploadHandler{Ledger: ledger}.Recent(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, ledger.owners)
	})

	t.Run("ledger disabled", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/uploads/recent", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		UploadHandler{}.Recent(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/uploads/recent?limit=lots", nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		UploadHandler{Verifier: &fakeVerifier{}, Ledger: &fakeLedger{}}.Recent(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUploadHandlerRejectsUnverifiedCredential(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStorage{}
	ledger := &fakeLedger{}
	handler := UploadHandler{
		Verifier:   &fakeVerifier{rejected: map[string]bool{"forged": true}},
		Storage:    store,
		Ledger:     ledger,
		StagingDir: dir,
	}

	rec := httptest.NewRecorder()
	handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), "forged"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authentication required. Please sign in with Google."}`, rec.Body.String())
	assert.Zero(t, store.callCount())
	assert.Empty(t, ledger.records)
	assert.Empty(t, dirEntries(t, dir))
}

func TestUploadHandlerFailsClosedWithoutVerification(t *testing.T) {
	for name, verifier := range map[string]TokenVerifier{
		"missing":     nil,
		"unreachable": &fakeVerifier{err: errProviderDown},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store := &fakeStorage{}
			handler := UploadHandler{Verifier: verifier, Storage: store, StagingDir: dir}

			rec := httptest.NewRecorder()
			handler.Upload(rec, newUploadRequest(t, VideoField, "clip.mp4", "video/mp4", []byte("data"), "tok"))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"Failed to upload file"}`, rec.Body.String())
			assert.Zero(t, store.callCount())
			assert.Empty(t, dirEntries(t, dir))
		})
	}
}
