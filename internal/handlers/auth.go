package handlers

import (
	"net/http"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/logging"
)

// Redirect targets reported back to the landing page after the consent round trip.
const (
	redirectAuthSuccess         = "/?success=auth_success"
	redirectAuthFailed          = "/?error=auth_failed"
	redirectNoCode              = "/?error=no_code"
	redirectTokenExchangeFailed = "/?error=token_exchange_failed"
)

const (
	msgNoRefreshToken = "No refresh token available"
	msgRefreshFailed  = "Failed to refresh token"
)

// AuthHandler implements the browser OAuth flow and the cookie-backed session endpoints.
type AuthHandler struct {
	Provider IdentityProvider
	Cookies  auth.Cookies
}

type statusResponse struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Start handles GET /auth/start by redirecting to the consent page.
func (h AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Provider == nil {
		logging.FromContext(ctx).Error("identity provider unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	http.Redirect(w, r, h.Provider.AuthCodeURL(), http.StatusFound)
}

// Callback handles the consent redirect. The outcome is always reported as a
// redirect to the landing page.
func (h AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn("authorization denied by provider", "error", providerErr)
		http.Redirect(w, r, redirectAuthFailed, http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		logger.Warn("authorization callback without code")
		http.Redirect(w, r, redirectNoCode, http.StatusFound)
		return
	}

	if h.Provider == nil {
		logger.Error("identity provider unavailable")
		http.Redirect(w, r, redirectTokenExchangeFailed, http.StatusFound)
		return
	}

	creds, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		logger.Error("token exchange failed", "error", err)
		http.Redirect(w, r, redirectTokenExchangeFailed, http.StatusFound)
		return
	}

	if err := h.Cookies.Store(w, creds); err != nil {
		logger.Error("failed to store credentials", "error", err)
		h.Cookies.Clear(w)
		http.Redirect(w, r, redirectTokenExchangeFailed, http.StatusFound)
		return
	}

	logger.Info("authorization completed", "refreshIssued", creds.HasRefreshToken())
	http.Redirect(w, r, redirectAuthSuccess, http.StatusFound)
}

// Refresh handles POST /auth/refresh, replacing the access cookie.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session := h.Cookies.Read(r)
	if session.RefreshToken == "" {
		respondError(ctx, w, http.StatusUnauthorized, msgNoRefreshToken)
		return
	}

	if h.Provider == nil {
		logger.Error("identity provider unavailable")
		respondError(ctx, w, http.StatusUnauthorized, msgRefreshFailed)
		return
	}

	creds, err := h.Provider.Refresh(ctx, session.RefreshToken)
	if err != nil {
		logger.Error("token refresh failed", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, msgRefreshFailed)
		return
	}

	// Only a rotated refresh credential is rewritten; the original keeps its expiry.
	if creds.RefreshToken == session.RefreshToken {
		creds.RefreshToken = ""
	}
	if err := h.Cookies.Store(w, creds); err != nil {
		logger.Error("failed to store refreshed credentials", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, msgRefreshFailed)
		return
	}

	respondJSON(ctx, w, http.StatusOK, successResponse{Success: true})
}

// Status handles GET /auth/status. It only checks for the access cookie.
func (h AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Cookies.Read(r).Authenticated() {
		respondJSON(ctx, w, http.StatusOK, statusResponse{IsAuthenticated: true})
		return
	}
	respondJSON(ctx, w, http.StatusUnauthorized, statusResponse{IsAuthenticated: false})
}

// SignOut handles POST /auth/signout by expiring both cookies.
func (h AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.Cookies.Clear(w)
	respondJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}
