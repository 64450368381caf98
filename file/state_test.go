package file

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", SessionState(99).String())
}

func TestSessionState_Terminal(t *testing.T) {
	for _, s := range []SessionState{StateIdle, StateStarting, StateStreaming, StateFinalizing, StateRenaming} {
		assert.False(t, s.Terminal(), s.String())
	}
	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateAborted.Terminal())
}

func TestTransferError(t *testing.T) {
	err := fmt.Errorf("run: %w", &TransferError{Phase: StateRenaming, Err: ErrRenameRejected})

	assert.Equal(t, "run: renaming failed: device failed final rename", err.Error())
	assert.True(t, errors.Is(err, ErrRenameRejected))

	var terr *TransferError
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, StateRenaming, terr.Phase)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{Marker: "5C", PaceInterval: -1, FinalizeRetries: -3}.withDefaults()

	assert.Equal(t, DefaultPlannerConfig(), opts.Planner)
	assert.Equal(t, DefaultMarker, opts.Marker)
	assert.Equal(t, 31, opts.NameLength)
	assert.Equal(t, DefaultStartTimeout, opts.StartTimeout)
	assert.Equal(t, DefaultFinalizeTimeout, opts.FinalizeTimeout)
	assert.Equal(t, DefaultRenameTimeout, opts.RenameTimeout)
	assert.Zero(t, opts.PaceInterval)
	assert.Zero(t, opts.FinalizeRetries)
	assert.NotNil(t, opts.Progress)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.TimeProvider)
}
