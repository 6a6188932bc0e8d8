package backend

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects the supplied credentials or token.
	ErrInvalidCredentials = errors.New("backend: invalid credentials")
	// ErrBackendUnavailable is returned on transport failures and 5xx responses.
	ErrBackendUnavailable = errors.New("backend: service unavailable")
	// ErrUnexpectedResponse is returned when the backend answers with a status or body the client cannot use.
	ErrUnexpectedResponse = errors.New("backend: unexpected response")
	// ErrPasswordSetupRequired is returned by Login when the account has no password yet.
	ErrPasswordSetupRequired = errors.New("backend: password setup required")
)
