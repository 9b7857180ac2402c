package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
)

// DriveFileScope grants access to files created by this application only.
const DriveFileScope = "https://www.googleapis.com/auth/drive.file"

// Provider drives the authorization-code flow against the identity provider.
type Provider struct {
	config    *oauth2.Config
	tokenInfo string
	client    *http.Client
	NowFunc   func() time.Time
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithTokenInfoEndpoint points access-token verification at an alternative API root.
func WithTokenInfoEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) { p.tokenInfo = endpoint }
}

// WithHTTPClient sets the client used for token verification.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) { p.client = client }
}

// NewGoogleProvider configures a Provider for Google accounts.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...ProviderOption) *Provider {
	return NewProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{DriveFileScope},
	}, opts...)
}

// NewProvider wraps an arbitrary oauth2 configuration.
func NewProvider(cfg *oauth2.Config, opts ...ProviderOption) *Provider {
	if cfg == nil {
		panic("auth: oauth2 config must not be nil")
	}
	p := &Provider{config: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthCodeURL returns the consent page URL. It always asks for offline access
// and forces the consent prompt so a refresh credential is issued every time.
func (p *Provider) AuthCodeURL() string {
	return p.config.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades a one-time authorization code for a credential pair.
func (p *Provider) Exchange(ctx context.Context, code string) (creds models.Credentials, err error) {
	ctx, span := logging.StartSpan(ctx, "oauth.exchange")
	defer func() { span.EndWithError(err) }()

	if code == "" {
		return models.Credentials{}, fmt.Errorf("%w: empty authorization code", ErrExchangeFailed)
	}

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return models.Credentials{}, fmt.Errorf("%w: provider returned no access token", ErrExchangeFailed)
	}

	return p.credentials(tok), nil
}

// Refresh obtains a new access credential using a refresh credential.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (creds models.Credentials, err error) {
	if refreshToken == "" {
		return models.Credentials{}, ErrNoRefreshToken
	}

	ctx, span := logging.StartSpan(ctx, "oauth.refresh")
	defer func() { span.EndWithError(err) }()

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			logging.FromContext(ctx).Warn("refresh rejected by provider",
				"status", retrieveErr.Response.StatusCode,
				"errorCode", retrieveErr.ErrorCode,
			)
		}
		return models.Credentials{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if tok.AccessToken == "" {
		return models.Credentials{}, fmt.Errorf("%w: provider returned no access token", ErrRefreshFailed)
	}

	return p.credentials(tok), nil
}

// Verify asks the provider's tokeninfo endpoint who accessToken belongs to.
// Tokens that are unknown, expired or issued to another client fail with
// ErrInvalidToken; transport and server failures are returned wrapped.
func (p *Provider) Verify(ctx context.Context, accessToken string) (principal models.Principal, err error) {
	if accessToken == "" {
		return models.Principal{}, ErrInvalidToken
	}

	ctx, span := logging.StartSpan(ctx, "oauth.tokeninfo")
	defer func() { span.EndWithError(err) }()

	client := p.client
	if client == nil {
		client = http.DefaultClient
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.tokenInfo != "" {
		opts = append(opts, option.WithEndpoint(p.tokenInfo))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return models.Principal{}, fmt.Errorf("tokeninfo client: %w", err)
	}

	info, err := svc.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
			return models.Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return models.Principal{}, fmt.Errorf("tokeninfo: %w", err)
	}

	switch {
	case info.Audience != p.config.ClientID:
		return models.Principal{}, fmt.Errorf("%w: issued to another client", ErrInvalidToken)
	case info.ExpiresIn <= 0:
		return models.Principal{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	case info.UserId == "":
		return models.Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return models.Principal{Subject: info.UserId, Email: info.Email}, nil
}

func (p *Provider) credentials(tok *oauth2.Token) models.Credentials {
	now := p.now()

	creds := models.Credentials{
		AccessToken:     tok.AccessToken,
		AccessExpiresAt: tok.Expiry,
		RefreshToken:    tok.RefreshToken,
	}
	if creds.AccessExpiresAt.IsZero() {
		creds.AccessExpiresAt = now.Add(AccessTTL)
	}
	if creds.HasRefreshToken() {
		creds.RefreshExpiresAt = now.Add(RefreshTTL)
	}
	return creds
}

func (p *Provider) now() time.Time {
	if p.NowFunc != nil {
		return p.NowFunc()
	}
	return time.Now().UTC()
}
