package session

import "errors"

var (
	// ErrMissingCredentials is returned by Login before any network call
	// when the identifier or secret is empty.
	ErrMissingCredentials = errors.New("identifier and secret are required")

	// ErrLoginInProgress is returned when a login arrives while another
	// login or a refresh is already in flight. Requests are rejected, not
	// queued.
	ErrLoginInProgress = errors.New("login or refresh already in progress")

	// ErrLoginAborted is returned when a logout superseded the login while
	// its network call was in flight. The result has been discarded.
	ErrLoginAborted = errors.New("login aborted by logout")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("session manager already started")
)
