package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and caches return these
// (optionally wrapped) so services can translate them into coded domain
// errors at the boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: key does not exist in the store
// - ErrExists: key already present where an insert was required
// - ErrAborted: a store transaction gave up after conflict retries
// - ErrTooManyKeys: a transaction asked for more keys than one entity group allows
// - ErrUnavailable: the backing store or cache cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("already exists")
	ErrAborted     = errors.New("transaction aborted")
	ErrTooManyKeys = errors.New("too many keys for one entity group")
	ErrUnavailable = errors.New("unavailable")
)
