package file

import "time"

// testAckTimeout bounds every acknowledgment wait in tests.
const testAckTimeout = 200 * time.Millisecond

// testShortTimeout is used where a timeout is the expected outcome.
const testShortTimeout = 20 * time.Millisecond

// Common payload sizes.
const (
	testSizeTwoChunks   = 2000
	testSizeFiveChunks  = 5000
	testSizeTwentyChunk = 20 * 1024
	testSizeLarge       = 2_000_000
)

const testFileName = "track.mp3"
