package auth

import "errors"

var (
	// ErrNoRefreshToken indicates the request carries no refresh credential.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrExchangeFailed wraps failures exchanging an authorization code.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrInvalidToken indicates the identity provider does not recognise an
	// access credential as one issued to this application.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrRefreshFailed wraps failures exchanging a refresh credential.
	ErrRefreshFailed = errors.New("token refresh failed")
)
