package errors

import (
	"errors"
	"fmt"
)

// Custom error types for the link shortener application

// ErrLinkNotFound is returned when a code or alias does not resolve to a
// usable link. Inactive and expired links return this same error on purpose:
// the caller must not be able to tell them apart from absent ones.
var ErrLinkNotFound = errors.New("link not found")

// ErrPasswordRequired is returned when a password-protected link is resolved
// without a password.
var ErrPasswordRequired = errors.New("password required")

// ErrInvalidPassword is returned when the supplied password does not match
// the stored hash.
var ErrInvalidPassword = errors.New("invalid password")

// ErrStoreUnavailable is returned when the backing store cannot be reached.
// Unlike the best-effort failures below, this one always propagates.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrInvalidURL is returned when the destination URL is empty or does not
// use the http or https scheme.
var ErrInvalidURL = errors.New("invalid URL format")

// ErrAliasTaken is returned when the requested custom alias is already in use.
var ErrAliasTaken = errors.New("custom alias already exists")

// ErrCodeGenerationFailed is returned when a unique short code cannot be
// generated because the store is unreachable.
var ErrCodeGenerationFailed = errors.New("failed to generate unique short code")

// ErrClickRecordingFailed describes a failure while persisting a click.
// It is only ever logged: click recording never fails the redirect path.
type ErrClickRecordingFailed struct {
	LinkID uint
	Reason string
}

func (e ErrClickRecordingFailed) Error() string {
	return fmt.Sprintf("failed to record click for link %d: %s", e.LinkID, e.Reason)
}

// ErrURLCheckFailed is returned when a URL health check fails
type ErrURLCheckFailed struct {
	URL    string
	Reason string
}

func (e ErrURLCheckFailed) Error() string {
	return fmt.Sprintf("failed to check URL %s: %s", e.URL, e.Reason)
}
