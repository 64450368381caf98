package main

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/blefile/device"
	"github.com/opd-ai/blefile/file"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSendFlags(t *testing.T) {
	cfg, sf, fs, err := parseSendFlags([]string{"-name", "x.mp3", "-pace", "0s", "-quiet", "song.mp3"})
	require.NoError(t, err)

	assert.Equal(t, "x.mp3", sf.name)
	assert.True(t, sf.quiet)
	assert.Zero(t, cfg.Transfer.PaceInterval)
	assert.Equal(t, []string{"song.mp3"}, fs.Args())
}

func TestParseSendFlags_MissingConfig(t *testing.T) {
	_, _, _, err := parseSendFlags([]string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "a"})
	assert.Error(t, err)
}

func TestSend_AgainstSimulator(t *testing.T) {
	logrus.SetOutput(io.Discard)
	defer logrus.SetOutput(os.Stderr)

	sim := device.NewSimulator(device.Faults{DropChunks: []int{1}}, nil)
	srv := httptest.NewServer(device.NewServer(sim).Handler())
	defer srv.Close()

	cfg, _, _, err := parseSendFlags([]string{
		"-url", "ws" + strings.TrimPrefix(srv.URL, "http") + device.DefaultPath,
		"-pace", "0s",
		"-start-timeout", "2s",
		"-finalize-timeout", "2s",
		"-rename-timeout", "2s",
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	path := filepath.Join(t.TempDir(), "clip.mp3")
	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var last [2]int
	progress := file.ProgressFunc(func(sent, total int) { last = [2]int{sent, total} })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stats, err := send(ctx, cfg, path, "", progress)
	require.NoError(t, err)

	assert.Equal(t, "clip.mp3", stats.Name)
	assert.Equal(t, 2, stats.ChunksReplayed)
	assert.Equal(t, [2]int{3, 3}, last)

	stored, ok := sim.File("clip.mp3")
	require.True(t, ok)
	assert.Equal(t, data, stored)
}

func TestSend_ConnectFailure(t *testing.T) {
	cfg, _, _, err := parseSendFlags([]string{"-url", "ws://127.0.0.1:1/ws"})
	require.NoError(t, err)

	_, err = send(context.Background(), cfg, "unused", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect ws://127.0.0.1:1/ws")
}

func TestProgressSink(t *testing.T) {
	sink := &progressSink{name: "test"}
	sink.Report(0, 0)
	assert.Nil(t, sink.bar)

	sink.Report(1, 4)
	require.NotNil(t, sink.bar)
	assert.Equal(t, 4, sink.bar.GetMax())

	sink.Report(0, 0)
	assert.Nil(t, sink.bar)
}
