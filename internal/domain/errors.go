package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrStoreUnavailable marks failures of the backing key-value store.
	// Callers on the durable path must surface it; it is never swallowed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnknownEvent is returned when an envelope names an event kind this build does not know.
	ErrUnknownEvent = errors.New("unknown event")
)
