package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
	"github.com/vidfriends/uploader/internal/staging"
	"github.com/vidfriends/uploader/internal/storage"
	"github.com/vidfriends/uploader/internal/videos"
)

// VideoField is the multipart field carrying the upload.
const VideoField = "video"

const (
	msgAuthRequired   = "Authentication required. Please sign in with Google."
	msgNoVideo        = "No video file provided"
	msgNotVideo       = "File must be a video"
	msgTooLarge       = "File too large"
	msgUploadFailed   = "Failed to upload file"
	msgLedgerDisabled = "upload history is not enabled"

	multipartMemory = 32 << 20
)

// UploadHandler forwards one video per request to the storage provider. Every
// access credential is checked with Verifier before anything is staged, so
// backends that write with their own credentials never see a forged cookie.
type UploadHandler struct {
	Cookies    auth.Cookies
	Verifier   TokenVerifier
	Storage    FileStorage
	Ledger     UploadLedger
	StagingDir string
	MaxBytes   int64
}

type uploadResponse struct {
	Success bool `json:"success"`
	models.StoredFile
}

type recentResponse struct {
	Uploads []models.UploadRecord `json:"uploads"`
}

// Upload handles POST /upload. The access cookie is checked before the body is
// read, and the staged copy is removed on every path once it exists.
func (h UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session := h.Cookies.Read(r)
	if !session.Authenticated() {
		respondError(ctx, w, http.StatusUnauthorized, msgAuthRequired)
		return
	}

	if h.Storage == nil {
		logger.Error("storage provider unavailable")
		respondError(ctx, w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	if h.MaxBytes > 0 {
		if r.ContentLength > h.MaxBytes {
			respondError(ctx, w, http.StatusBadRequest, msgTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}

	file, header, err := r.FormFile(VideoField)
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logger.Warn("failed to remove multipart spill files", "error", err)
			}
		}()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusBadRequest, msgTooLarge)
			return
		}
		logger.Warn("upload without video field", "error", err)
		respondError(ctx, w, http.StatusBadRequest, msgNoVideo)
		return
	}
	defer file.Close()

	mediaType := header.Header.Get("Content-Type")
	if err := videos.Validate(mediaType); err != nil {
		logger.Warn("rejected non-video upload", "fileName", header.Filename, "mediaType", mediaType)
		respondError(ctx, w, http.StatusBadRequest, msgNotVideo)
		return
	}

	principal, ok := h.verify(w, r, session.AccessToken, http.StatusInternalServerError, msgUploadFailed)
	if !ok {
		return
	}

	staged, err := staging.Stage(ctx, h.StagingDir, header.Filename, file)
	if err != nil {
		logger.Error("failed to stage upload", "fileName", header.Filename, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, msgUploadFailed)
		return
	}
	defer staged.Release(ctx)

	body, err := staged.Open()
	if err != nil {
		logger.Error("failed to reopen staged upload", "path", staged.Path, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, msgUploadFailed)
		return
	}
	defer body.Close()

	stored, err := h.Storage.Create(ctx, session.AccessToken, storage.Object{
		Name:      header.Filename,
		MediaType: mediaType,
		Size:      staged.Size,
		Body:      body,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUnauthorized) {
			logger.Warn("storage rejected access credential", "provider", h.Storage.Name(), "error", err)
			respondError(ctx, w, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		logger.Error("storage upload failed", "provider", h.Storage.Name(), "fileName", header.Filename, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	if h.Ledger != nil {
		record := models.UploadRecord{
			OwnerID:     principal.Subject,
			FileID:      stored.ID,
			FileName:    stored.Name,
			MediaType:   mediaType,
			Size:        staged.Size,
			WebViewLink: stored.WebViewLink,
			Provider:    h.Storage.Name(),
		}
		if err := h.Ledger.Record(ctx, record); err != nil {
			logger.Warn("failed to record upload", "fileId", stored.ID, "error", err)
		}
	}

	logger.Info("upload completed", "fileId", stored.ID, "size", staged.Size)
	respondJSON(ctx, w, http.StatusOK, uploadResponse{Success: true, StoredFile: stored})
}

// Recent handles GET /uploads/recent?limit=N.
func (h UploadHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	session := h.Cookies.Read(r)
	if !session.Authenticated() {
		respondError(ctx, w, http.StatusUnauthorized, msgAuthRequired)
		return
	}

	if h.Ledger == nil {
		respondError(ctx, w, http.StatusNotFound, msgLedgerDisabled)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(ctx, w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	principal, ok := h.verify(w, r, session.AccessToken, http.StatusInternalServerError, "failed to list uploads")
	if !ok {
		return
	}

	records, err := h.Ledger.Recent(ctx, principal.Subject, limit)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list uploads", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if records == nil {
		records = []models.UploadRecord{}
	}

	respondJSON(ctx, w, http.StatusOK, recentResponse{Uploads: records})
}

// verify resolves the caller's principal. A rejected credential answers 401 so
// the client refreshes; any other failure answers failStatus with failMessage.
func (h UploadHandler) verify(w http.ResponseWriter, r *http.Request, accessToken string, failStatus int, failMessage string) (models.Principal, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Verifier == nil {
		logger.Error("token verifier unavailable")
		respondError(ctx, w, failStatus, failMessage)
		return models.Principal{}, false
	}

	principal, err := h.Verifier.Verify(ctx, accessToken)
	switch {
	case err == nil:
		return principal, true
	case errors.Is(err, auth.ErrInvalidToken):
		logger.Warn("access credential rejected", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, msgAuthRequired)
	default:
		logger.Error("failed to verify access credential", "error", err)
		respondError(ctx, w, failStatus, failMessage)
	}
	return models.Principal{}, false
}
