package auth

import (
	"net/http"
	"time"

	"github.com/vidfriends/uploader/internal/logging"
	"github.com/vidfriends/uploader/internal/models"
)

// Cookie names and lifetimes for the credential pair.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"

	AccessTTL  = time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// Session is the credential view of a single request, built from its cookies.
// It never reaches back to the identity provider.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Authenticated reports whether an access credential is present. A stale but
// present credential still counts until a downstream call rejects it.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Cookies reads the credential pair from requests and writes Set-Cookie
// instructions to responses.
type Cookies struct {
	Secure bool
	Codec  *CookieCodec
}

// Read builds the Session carried by r. Cookies that fail to open are treated
// as absent.
func (c Cookies) Read(r *http.Request) Session {
	return Session{
		AccessToken:  c.value(r, AccessCookieName),
		RefreshToken: c.value(r, RefreshCookieName),
	}
}

// Store writes the access cookie and, when present, the refresh cookie.
func (c Cookies) Store(w http.ResponseWriter, creds models.Credentials) error {
	if err := c.SetAccess(w, creds.AccessToken); err != nil {
		return err
	}
	if creds.HasRefreshToken() {
		return c.set(w, RefreshCookieName, creds.RefreshToken, RefreshTTL)
	}
	return nil
}

// SetAccess overwrites the access cookie with a fresh one-hour lifetime.
func (c Cookies) SetAccess(w http.ResponseWriter, token string) error {
	return c.set(w, AccessCookieName, token, AccessTTL)
}

// Clear expires both credential cookies immediately.
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, c.cookie(name, "", -1))
	}
}

func (c Cookies) set(w http.ResponseWriter, name, value string, ttl time.Duration) error {
	if c.Codec != nil {
		sealed, err := c.Codec.Seal(name, value)
		if err != nil {
			return err
		}
		value = sealed
	}
	http.SetCookie(w, c.cookie(name, value, int(ttl/time.Second)))
	return nil
}

func (c Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c Cookies) value(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return ""
	}
	if c.Codec == nil {
		return cookie.Value
	}
	value, err := c.Codec.Open(name, cookie.Value)
	if err != nil {
		logging.FromContext(r.Context()).Debug("discarding unreadable cookie", "cookie", name, "error", err)
		return ""
	}
	return value
}
