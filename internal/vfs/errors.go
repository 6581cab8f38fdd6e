package vfs

import (
	"errors"
	"fmt"
)

// ErrStopped is returned when an operation is submitted after the engine
// stopped, or when the engine stops before applying it.
var ErrStopped = errors.New("vfs: engine stopped")

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("vfs: engine already running")

// Sentinel causes carried by OpError.
var (
	ErrInvalidParent     = errors.New("parent is not an existing folder")
	ErrContentOnFolder   = errors.New("folders cannot carry content")
	ErrInvalidKind       = errors.New("unknown item kind")
	ErrInvalidPermission = errors.New("unknown permission")
)

// OpError describes an operation the engine refused.
//
// Most rejections (blank rename, self-move, root delete) are silent no-ops
// that only log at debug level; OpError is returned where the caller needs
// a failure indicator, such as CreateItem with a bad parent.
type OpError struct {
	// Op is the operation name, e.g. "create".
	Op string

	// ID is the node the operation was aimed at.
	ID string

	// Err is the cause, one of the sentinel errors above.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the cause so errors.Is matches the sentinels.
func (e *OpError) Unwrap() error { return e.Err }

// IsRejected reports whether err is an OpError.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var oe *OpError
	return errors.As(err, &oe)
}
