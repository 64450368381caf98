// Package device simulates an upload target for the C0-C3 protocol.
//
// A Simulator decodes command frames, stores chunks, answers with
// acknowledgment notifications and keeps the files it has committed. Faults
// can be injected to exercise the sender's recovery paths: a rejected start,
// dropped chunks that force a finalize replay, a failed rename, or silence.
//
// The simulator is reachable in-process through a Link or over WebSocket
// through a Server:
//
//	sim := device.NewSimulator(device.Faults{DropChunks: []int{3}}, nil)
//	link := device.NewLink(sim)
//	uploader, _ := file.NewUploader(link, file.DefaultOptions())
//	_, err := uploader.Send(ctx, data, "track.mp3")
package device
