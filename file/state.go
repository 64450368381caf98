package file

// SessionState is a phase of the upload state machine.
type SessionState uint8

const (
	// StateIdle means the session has not started.
	StateIdle SessionState = iota
	// StateStarting means the start command is out and its acknowledgment is awaited.
	StateStarting
	// StateStreaming means chunks are being written.
	StateStreaming
	// StateFinalizing means the device is committing the chunks, possibly after a replay.
	StateFinalizing
	// StateRenaming means the committed file is being moved to its final name.
	StateRenaming
	// StateComplete means the upload succeeded.
	StateComplete
	// StateAborted means the upload failed, was cancelled, or the link dropped.
	StateAborted
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateStarting:   "starting",
	StateStreaming:  "streaming",
	StateFinalizing: "finalizing",
	StateRenaming:   "renaming",
	StateComplete:   "complete",
	StateAborted:    "aborted",
}

// String returns the lower-case state name.
func (s SessionState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateAborted
}
