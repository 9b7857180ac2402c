package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends understood by the uploader.
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
)

// Config captures the runtime configuration for the uploader service.
type Config struct {
	AppPort        int
	Environment    string
	LogLevel       string
	DatabaseURL    string
	StagingDir     string
	MaxUploadBytes int64
	CookieSecret   string
	WriteTimeout   time.Duration

	Google    GoogleConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

// GoogleConfig holds the OAuth client registration and the Drive destination.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	FolderID          string
	DriveEndpoint     string
	TokenInfoEndpoint string
}

// StorageConfig selects and configures the storage provider.
type StorageConfig struct {
	Backend     string
	ObjectStore ObjectStoreConfig
}

// ObjectStoreConfig describes an S3-compatible bucket.
type ObjectStoreConfig struct {
	Bucket        string
	Prefix        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// RateLimitConfig bounds how often a single client IP may hit auth and upload endpoints.
// X-Forwarded-For is only consulted when the peer is inside one of TrustedProxies.
type RateLimitConfig struct {
	Requests       int
	Window         time.Duration
	Burst          int
	TrustedProxies []string
}

// Production reports whether cookies should be marked Secure.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads configuration from an optional config file and environment variables,
// applying defaults suited to local development. Keys may be overridden with
// UPLOADER_-prefixed variables; the Google credentials also honour the plain
// GOOGLE_* names.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UPLOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"google.client_id":     {"UPLOADER_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
		"google.client_secret": {"UPLOADER_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"},
		"google.redirect_uri":  {"UPLOADER_GOOGLE_REDIRECT_URI", "GOOGLE_REDIRECT_URI"},
		"google.folder_id":     {"UPLOADER_GOOGLE_DRIVE_FOLDER_ID", "GOOGLE_DRIVE_FOLDER_ID"},
		"environment":          {"UPLOADER_ENVIRONMENT", "APP_ENV"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		AppPort:        v.GetInt("port"),
		Environment:    v.GetString("environment"),
		LogLevel:       v.GetString("log_level"),
		DatabaseURL:    v.GetString("database_url"),
		StagingDir:     v.GetString("staging_dir"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		CookieSecret:   v.GetString("cookie_secret"),
		WriteTimeout:   v.GetDuration("write_timeout"),
		Google: GoogleConfig{
			ClientID:          v.GetString("google.client_id"),
			ClientSecret:      v.GetString("google.client_secret"),
			RedirectURL:       v.GetString("google.redirect_uri"),
			FolderID:          v.GetString("google.folder_id"),
			DriveEndpoint:     v.GetString("storage.drive_endpoint"),
			TokenInfoEndpoint: v.GetString("google.tokeninfo_endpoint"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
			ObjectStore: ObjectStoreConfig{
				Bucket:        v.GetString("storage.s3.bucket"),
				Prefix:        v.GetString("storage.s3.prefix"),
				Region:        v.GetString("storage.s3.region"),
				Endpoint:      v.GetString("storage.s3.endpoint"),
				PublicBaseURL: v.GetString("storage.s3.public_base_url"),
				PresignTTL:    v.GetDuration("storage.s3.presign_ttl"),
			},
		},
		RateLimit: RateLimitConfig{
			Requests:       v.GetInt("ratelimit.requests"),
			Window:         v.GetDuration("ratelimit.window"),
			Burst:          v.GetInt("ratelimit.burst"),
			TrustedProxies: v.GetStringSlice("ratelimit.trusted_proxies"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("staging_dir", "")
	v.SetDefault("max_upload_bytes", int64(2<<30))
	v.SetDefault("cookie_secret", "")
	v.SetDefault("write_timeout", 10*time.Minute)
	v.SetDefault("google.redirect_uri", "http://localhost:8080/auth/callback")
	v.SetDefault("storage.backend", BackendDrive)
	v.SetDefault("google.tokeninfo_endpoint", "")
	v.SetDefault("storage.drive_endpoint", "")
	v.SetDefault("storage.s3.prefix", "uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.presign_ttl", 7*24*time.Hour)
	v.SetDefault("ratelimit.requests", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.trusted_proxies", []string{})
}

// Validate reports every missing setting required by the selected storage backend.
func (c Config) Validate() error {
	var errs []error

	if c.Google.ClientID == "" {
		errs = append(errs, errors.New("google client id is required"))
	}
	if c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("google client secret is required"))
	}
	if c.Google.RedirectURL == "" {
		errs = append(errs, errors.New("google redirect uri is required"))
	}

	switch c.Storage.Backend {
	case BackendDrive:
		if c.Google.FolderID == "" {
			errs = append(errs, errors.New("google drive folder id is required"))
		}
	case BackendS3:
		if c.Storage.ObjectStore.Bucket == "" {
			errs = append(errs, errors.New("s3 bucket is required"))
		}
		// The bucket is written with the server's own credentials, so only
		// cookies this server sealed are accepted.
		if c.CookieSecret == "" {
			errs = append(errs, errors.New("cookie secret is required with the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	for _, cidr := range c.RateLimit.TrustedProxies {
		if _, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err != nil {
			errs = append(errs, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err))
		}
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}

	return errors.Join(errs...)
}
