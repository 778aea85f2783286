package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into outcomes or domain errors:
// - ErrNotFound: no row matched the lookup
// - ErrConflict: a uniqueness invariant was observed violated in stored data
// - ErrUnavailable: backing store or dependency temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
