package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidfriends/uploader/internal/auth"
	"github.com/vidfriends/uploader/internal/config"
	"github.com/vidfriends/uploader/internal/handlers"
	"github.com/vidfriends/uploader/internal/middleware"
	"github.com/vidfriends/uploader/internal/repositories"
	"github.com/vidfriends/uploader/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// A nil pool leaves the upload ledger disabled.
func buildDependencies(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (handlers.Dependencies, error) {
	cookies := auth.Cookies{Secure: cfg.Production()}
	if cfg.CookieSecret != "" {
		codec, err := auth.NewCookieCodec(cfg.CookieSecret)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		cookies.Codec = codec
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	var providerOpts []auth.ProviderOption
	if cfg.Google.TokenInfoEndpoint != "" {
		providerOpts = append(providerOpts, auth.WithTokenInfoEndpoint(cfg.Google.TokenInfoEndpoint))
	}

	deps := handlers.Dependencies{
		Identity:       auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL, providerOpts...),
		Cookies:        cookies,
		Storage:        store,
		StagingDir:     cfg.StagingDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		TrustedProxies: proxies,
	}

	if cfg.RateLimit.Requests > 0 {
		deps.RateLimiter = middleware.NewClientLimiter(cfg.RateLimit)
	}

	if pool != nil {
		deps.Ledger = repositories.NewPostgresUploadLedger(pool)
		deps.Ping = pool.Ping
	}

	return deps, nil
}

func newStorage(ctx context.Context, cfg config.Config) (handlers.FileStorage, error) {
	switch cfg.Storage.Backend {
	case config.BackendDrive, "":
		var opts []storage.DriveOption
		if cfg.Google.DriveEndpoint != "" {
			opts = append(opts, storage.WithDriveEndpoint(cfg.Google.DriveEndpoint))
		}
		return storage.NewDriveStorage(cfg.Google.FolderID, opts...), nil
	case config.BackendS3:
		s3Store, err := storage.NewS3Storage(ctx, cfg.Storage.ObjectStore)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
