package ipfs

import (
	"errors"
	"fmt"
)

// Debug enables internal consistency checks. When set, daemon responses
// that can only arise from misuse of the library panic instead of being
// returned as errors.
var Debug bool

var (
	// ErrEmptyPath is returned when resolving an empty path.
	ErrEmptyPath = errors.New("cannot resolve empty path")
	// ErrAbsolutePath is returned when an object is asked to resolve an
	// absolute path. Objects only resolve paths relative to themselves.
	ErrAbsolutePath = errors.New("expected relative path")
	// ErrLinkNotFound is returned when no link matches the first path
	// segment.
	ErrLinkNotFound = errors.New("path lookup failed")
	// ErrSizeMismatch is returned when a fetched object's size disagrees
	// with the reference used to fetch it.
	ErrSizeMismatch = errors.New("reference and referenced object sizes do not match")
)

// Daemon messages with meaning beyond their text.
const (
	msgNotPinned  = "not pinned"
	msgInvalidRef = "invalid ipfs ref path"
)

// RemoteError is a failure reported by the daemon itself. Message carries
// the daemon's description verbatim.
type RemoteError struct {
	Message string
	Code    int
}

func (e *RemoteError) Error() string {
	var out string
	if e.Code != 0 {
		out = fmt.Sprintf("%d: ", e.Code)
	}
	return out + e.Message
}

// CommitError is returned when committing a draft fails. Object is the
// draft, unchanged, so the caller can repair it and retry.
type CommitError struct {
	Err    error
	Object *Object
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %s", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
