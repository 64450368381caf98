package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/blefile/codec"
	"github.com/opd-ai/blefile/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUploader(t *testing.T) {
	_, err := NewUploader(nil, testOptions())
	assert.ErrorIs(t, err, ErrNilChannel)

	ch := newMockChannel(okScript())
	uploader, err := NewUploader(ch, testOptions())
	require.NoError(t, err)
	assert.NotNil(t, uploader.Waiter())
	assert.Len(t, ch.handlers, 1)
}

func TestUploader_Send(t *testing.T) {
	ch := newMockChannel(okScript())
	uploader, err := NewUploader(ch, testOptions())
	require.NoError(t, err)

	stats, err := uploader.Send(context.Background(), testPayload(testSizeTwoChunks), testFileName)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, stats.State)
	assert.Equal(t, 2, stats.ChunksSent)
	assert.NotEmpty(t, stats.TransferID)

	last, ok := uploader.LastStats()
	require.True(t, ok)
	assert.Equal(t, stats.TransferID, last.TransferID)

	_, active := uploader.Active()
	assert.False(t, active)
	assert.Zero(t, uploader.Waiter().Pending())
}

func TestUploader_NotConnected(t *testing.T) {
	ch := newMockChannel(okScript())
	ch.connected.Store(false)
	uploader, err := NewUploader(ch, testOptions())
	require.NoError(t, err)

	_, err = uploader.Send(context.Background(), testPayload(10), testFileName)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, ch.commands())

	_, ok := uploader.LastStats()
	assert.False(t, ok)
}

func TestUploader_SingleActiveTransfer(t *testing.T) {
	script := okScript()
	script.start = ""
	ch := newMockChannel(script)
	opts := testOptions()
	opts.StartTimeout = time.Minute
	uploader, err := NewUploader(ch, opts)
	require.NoError(t, err)

	assert.ErrorIs(t, uploader.Cancel(), ErrNoActiveTransfer)

	done := make(chan error, 1)
	go func() {
		_, err := uploader.Send(context.Background(), testPayload(testSizeTwoChunks), testFileName)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return uploader.Waiter().Pending() == 1
	}, time.Second, 5*time.Millisecond)

	session, ok := uploader.Active()
	require.True(t, ok)
	assert.Equal(t, StateStarting, session.State())

	_, err = uploader.Send(context.Background(), testPayload(10), "other.mp3")
	assert.ErrorIs(t, err, ErrTransferInProgress)

	require.NoError(t, uploader.Cancel())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
		requirePhase(t, err, StateStarting)
	case <-time.After(time.Second):
		t.Fatal("cancelled transfer did not return")
	}

	_, ok = uploader.Active()
	assert.False(t, ok)
	assert.Zero(t, uploader.Waiter().Pending())
}

func TestUploader_SendFile(t *testing.T) {
	ch := newMockChannel(okScript())
	uploader, err := NewUploader(ch, testOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, testPayload(1500), 0o644))

	stats, err := uploader.SendFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "song.mp3", stats.Name)
	assert.Equal(t, 1500, stats.Size)

	rename := ch.commands()[len(ch.commands())-1]
	assert.Equal(t, transport.OpRename, rename.Op)
	assert.Equal(t, DefaultMarker+codec.EncodeUTF16LENull("song.mp3"), rename.Payload)

	stats, err = uploader.SendFile(context.Background(), path, "renamed.mp3")
	require.NoError(t, err)
	assert.Equal(t, "renamed.mp3", stats.Name)

	_, err = uploader.SendFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
