package handlers

import (
	"context"
	"net/http"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Ping: deps.Ping}
	home := HomeHandler{}
	authn := AuthHandler{Provider: deps.Identity, Cookies: deps.Cookies}
	uploads := UploadHandler{
		Cookies:    deps.Cookies,
		Verifier:   deps.Identity,
		Storage:    deps.Storage,
		Ledger:     deps.Ledger,
		StagingDir: deps.StagingDir,
		MaxBytes:   deps.MaxUploadBytes,
	}

	limitAuth := middleware.RateLimit(deps.RateLimiter, "auth", deps.TrustedProxies)
	limitUpload := middleware.RateLimit(deps.RateLimiter, "upload", deps.TrustedProxies)

	mux.HandleFunc("/", home.Handle)
	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/auth/start", limitAuth(http.HandlerFunc(authn.Start)))
	mux.Handle("/auth/callback", limitAuth(http.HandlerFunc(authn.Callback)))
	mux.Handle("/auth/refresh", limitAuth(http.HandlerFunc(authn.Refresh)))
	mux.HandleFunc("/auth/status", authn.Status)
	mux.HandleFunc("/auth/signout", authn.SignOut)
	mux.Handle("/upload", limitUpload(http.HandlerFunc(uploads.Upload)))
	mux.HandleFunc("/uploads/recent", uploads.Recent)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Identity       IdentityProvider
	Cookies        auth.Cookies
	Storage        FileStorage
	Ledger         UploadLedger
	StagingDir     string
	MaxUploadBytes int64
	RateLimiter    middleware.RateLimiter
	TrustedProxies middleware.TrustedProxies
	Ping           func(ctx context.Context) error
}
