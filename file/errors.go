package file

import (
	"errors"
	"fmt"
)

// Precondition errors are returned before any command is sent.
var (
	// ErrNilChannel indicates a session or uploader was built without a channel.
	ErrNilChannel = errors.New("channel is required")

	// ErrNilWaiter indicates a session was built without an acknowledgment waiter.
	ErrNilWaiter = errors.New("acknowledgment waiter is required")

	// ErrNotConnected indicates the channel was down when a transfer was requested.
	ErrNotConnected = errors.New("not connected")

	// ErrTransferInProgress indicates a second transfer was started while one is active.
	ErrTransferInProgress = errors.New("transfer already in progress")

	// ErrNoActiveTransfer indicates a control request with no transfer running.
	ErrNoActiveTransfer = errors.New("no active transfer")

	// ErrSessionUsed indicates Run was called twice on the same session.
	ErrSessionUsed = errors.New("session already run")

	// ErrResumeOutOfRange indicates a resume cursor beyond the chunk count.
	ErrResumeOutOfRange = errors.New("resume cursor out of range")
)

// Fatal transfer errors.
var (
	// ErrStartRejected indicates the device refused the start command.
	ErrStartRejected = errors.New("device rejected start")

	// ErrFinalizeRejected indicates the device still reports missing data after replay.
	ErrFinalizeRejected = errors.New("device rejected finalize")

	// ErrRenameRejected indicates the device failed the final rename.
	ErrRenameRejected = errors.New("device failed final rename")

	// ErrCancelled indicates the transfer was cancelled by the caller.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrDisconnected indicates the channel dropped during the transfer.
	ErrDisconnected = errors.New("disconnected during transfer")
)

// TransferError reports the phase a transfer failed in.
type TransferError struct {
	Phase SessionState
	Err   error
}

// Error implements error.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransferError) Unwrap() error {
	return e.Err
}
