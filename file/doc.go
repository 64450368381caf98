// Package file uploads a binary payload to a device over a write/notify
// channel using a chunked, resumable protocol.
//
// # Overview
//
// The package provides two primary components:
//
//   - Session: drives one upload through start, stream, finalize and rename,
//     retaining every chunk payload so the device can ask for a replay
//   - Uploader: owns the acknowledgment waiter for a channel and allows one
//     active session at a time
//
// # Protocol
//
// An upload is four command/acknowledgment exchanges:
//
//	C0 size(4) chunks(2) 5C55 name  ->  BBC0 .. failed(1) .. written(4)
//	C1 index(2) data                    (no acknowledgment)
//	C2 (padded to 8 bytes)          ->  BBC2 .. failed(1) .. lastIndex(2)
//	C3 5C55 name (padded to 8)      ->  BBC3 .. failed(1)
//
// Integers are big-endian hex and names are null-terminated UTF-16LE. A
// nonzero written count in the start acknowledgment resumes streaming at
// written/chunkSize. A finalize failure replays retained chunks from lastIndex
// and finalizes again.
//
// # Sending
//
//	uploader, err := file.NewUploader(channel, file.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := uploader.SendFile(ctx, "/music/track.mp3", "")
//
// Sessions can also be built directly when the caller routes notifications:
//
//	waiter := transport.NewAckWaiter()
//	channel.OnNotification(func(p string) { waiter.Deliver(p) })
//	session, err := file.NewSession(channel, waiter, data, "track.mp3", opts)
//	err = session.Run(ctx)
//
// # Session States
//
//	StateIdle -> StateStarting -> StateStreaming -> StateFinalizing
//	          -> StateRenaming -> StateComplete
//
// Any failure, cancellation or disconnect moves the session to StateAborted,
// clears retained chunks and resets progress to zero.
//
// # Error Handling
//
// Run returns a *TransferError carrying the phase that failed. Use errors.Is
// with the sentinel errors to classify the cause:
//
//	var terr *file.TransferError
//	if errors.As(err, &terr) && errors.Is(err, file.ErrCancelled) {
//	    // cancelled during terr.Phase
//	}
//
// Timeouts wrap transport.ErrAckTimeout.
//
// # Deterministic Testing
//
// Options.TimeProvider replaces the clock used for elapsed time and speed.
package file
