package ezviz

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned when a call needs a session but Login has not succeeded
	ErrNotLoggedIn = errors.New("ezviz: not logged in")

	// ErrInvalidCredentials is returned when the account or password is rejected
	ErrInvalidCredentials = errors.New("ezviz: invalid username or password")

	// ErrMFARequired is returned when the account requires a verification code
	ErrMFARequired = errors.New("ezviz: account requires MFA verification")
)

// API result codes that the client reacts to.
const (
	codeOK               = 200
	codeInvalidSessionID = 401
	codeIncorrectUser    = 1013
	codeIncorrectPass    = 1014
	codeCaptchaRequired  = 1015
	codeWrongRegion      = 1100
	codeSessionExpired   = 2003
	codeMFARequired      = 6002
)

// APIError is a non-success meta block from the EZVIZ API
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ezviz: %s failed: code %d: %s", e.Endpoint, e.Code, e.Message)
}

// SessionExpired reports whether the error means the session token is no longer valid.
func (e *APIError) SessionExpired() bool {
	return e.Code == codeSessionExpired || e.Code == codeInvalidSessionID
}

func metaError(endpoint string, meta Meta) error {
	switch meta.Code {
	case codeOK:
		return nil
	case codeIncorrectUser, codeIncorrectPass:
		return ErrInvalidCredentials
	case codeMFARequired, codeCaptchaRequired:
		return ErrMFARequired
	default:
		return &APIError{Endpoint: endpoint, Code: meta.Code, Message: meta.Message}
	}
}
