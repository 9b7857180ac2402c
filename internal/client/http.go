package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidfriends/uploader/internal/models"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	videoField    = "video"
	maxErrorBody  = 64 << 10
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// HTTPAPI talks to the uploader server. Credentials live in the client's
// cookie jar, so a refresh response updates them for the next upload.
type HTTPAPI struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPAPI returns an API rooted at baseURL. A nil client gets a fresh cookie jar.
func NewHTTPAPI(baseURL string, client *http.Client) (*HTTPAPI, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}

	if client == nil {
		client = &http.Client{}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return &HTTPAPI{base: base, client: client}, nil
}

// SetCredentials seeds the jar with an existing credential pair. Empty values are skipped.
func (a *HTTPAPI) SetCredentials(accessToken, refreshToken string) {
	var cookies []*http.Cookie
	if accessToken != "" {
		cookies = append(cookies, &http.Cookie{Name: accessCookie, Value: accessToken, Path: "/"})
	}
	if refreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: refreshCookie, Value: refreshToken, Path: "/"})
	}
	if len(cookies) > 0 {
		a.client.Jar.SetCookies(a.base, cookies)
	}
}

// Status asks the server whether the jar holds an access credential.
func (a *HTTPAPI) Status(ctx context.Context) (bool, error) {
	resp, err := a.do(ctx, http.MethodGet, "/auth/status", nil, "")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		return false, readServerError(resp)
	}
}

// Refresh exchanges the jar's refresh credential for a new access credential.
func (a *HTTPAPI) Refresh(ctx context.Context) error {
	resp, err := a.do(ctx, http.MethodPost, "/auth/refresh", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readServerError(resp)
	}
	return nil
}

// Upload streams item.Path as the video field of a multipart request.
func (a *HTTPAPI) Upload(ctx context.Context, item *Item) (models.StoredFile, error) {
	file, err := os.Open(item.Path)
	if err != nil {
		return models.StoredFile{}, fmt.Errorf("open %s: %w", item.Path, err)
	}

	name := item.Name
	if name == "" {
		name = filepath.Base(item.Path)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		defer file.Close()

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, videoField, quoteEscaper.Replace(name)))
		header.Set("Content-Type", item.MediaType)

		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	resp, err := a.do(ctx, http.MethodPost, "/upload", pr, form.FormDataContentType())
	if err != nil {
		_ = pr.CloseWithError(err)
		return models.StoredFile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.StoredFile{}, readServerError(resp)
	}

	var stored models.StoredFile
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return models.StoredFile{}, fmt.Errorf("decode upload response: %w", err)
	}
	return stored, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	target := a.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func readServerError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.Join(&ServerError{Status: resp.StatusCode}, err)
	}

	var payload struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}
	return &ServerError{Status: resp.StatusCode, Message: message}
}
