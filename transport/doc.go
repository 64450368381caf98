// Package transport carries upload commands to a device and routes the
// device's notifications back to the sender.
//
// # Architecture
//
// The core abstraction is the Channel interface, a write path plus an
// asynchronous notification path:
//
//	type Channel interface {
//	    IsConnected() bool
//	    Send(ctx context.Context, cmd Command) error
//	    OnNotification(handler NotificationHandler)
//	    Close() error
//	}
//
// Two implementations are provided:
//
//   - BLEChannel: a GATT write characteristic and notify characteristic of a
//     connected peripheral (tinygo.org/x/bluetooth). Frames longer than the
//     attribute ceiling are split into consecutive writes.
//   - WebSocketChannel: binary WebSocket messages, used against GATT bridges
//     and the device simulator.
//
// # Framing
//
// Framer turns a Command into bytes:
//
//	[0xAA][opcode][payload, zero-padded to Trailer bytes][CRC-8]
//
// Notifications are passed to handlers as uppercase hex text so they can be
// matched by prefix, for example "BBC2" for the finalize acknowledgment.
//
// # Acknowledgments
//
// AckWaiter correlates notifications with commands. Register the expected
// prefix before sending, so a fast reply cannot be missed:
//
//	pending := waiter.Register(transport.OpStart.AckPrefix(), 5*time.Second)
//	if err := ch.Send(ctx, cmd); err != nil {
//	    pending.Cancel()
//	    return err
//	}
//	ack, err := pending.Wait(ctx) // wraps ErrAckTimeout on expiry
//
// When several registered prefixes match one notification, the earliest
// registration receives it. Notifications nobody waits for are dropped.
package transport
