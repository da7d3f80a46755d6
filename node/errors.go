package node

import "errors"

var (
	// ErrStopped reports an operation against a stopped component.
	ErrStopped = errors.New("stopped")
	// ErrRollbackDepth reports a fork-resolution walk that exceeded the
	// configured recursion ceiling.
	ErrRollbackDepth = errors.New("rollback depth exceeded")
	// ErrBelowConfirmed reports an attempt to undo a cemented block.
	ErrBelowConfirmed = errors.New("rollback below confirmation height")
)
