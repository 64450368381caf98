package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/blefile/limits"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// Default GATT layout of the upload service.
const (
	DefaultServiceUUID = "0000ae00-0000-1000-8000-00805f9b34fb"
	DefaultWriteUUID   = "0000ae01-0000-1000-8000-00805f9b34fb"
	DefaultNotifyUUID  = "0000ae02-0000-1000-8000-00805f9b34fb"
)

// GATTWriter is the write side of a characteristic.
type GATTWriter interface {
	WriteWithoutResponse(p []byte) (n int, err error)
}

// GATTNotifier is the notify side of a characteristic.
type GATTNotifier interface {
	EnableNotifications(callback func(buf []byte)) error
}

// BLEChannel sends frames to a write characteristic and receives notifications
// from a notify characteristic of an already connected peripheral.
type BLEChannel struct {
	notifier

	writer    GATTWriter
	notify    GATTNotifier
	framer    *Framer
	maxWrite  int
	writeMu   sync.Mutex
	connected atomic.Bool
}

// NewBLEChannel wires a channel to the given characteristics and enables
// notifications. Frames longer than maxWrite bytes are split into consecutive
// writes; maxWrite <= 0 selects limits.MaxGATTAttribute.
func NewBLEChannel(writer GATTWriter, notify GATTNotifier, framer *Framer, maxWrite int) (*BLEChannel, error) {
	if writer == nil || notify == nil {
		return nil, fmt.Errorf("ble channel requires write and notify characteristics")
	}
	if framer == nil {
		framer = NewFramer()
	}
	if maxWrite <= 0 {
		maxWrite = limits.MaxGATTAttribute
	}

	c := &BLEChannel{
		writer:   writer,
		notify:   notify,
		framer:   framer,
		maxWrite: maxWrite,
	}
	if err := notify.EnableNotifications(c.dispatch); err != nil {
		return nil, fmt.Errorf("enable notifications: %w", err)
	}
	c.connected.Store(true)
	return c, nil
}

// DiscoverBLEChannel looks up the write and notify characteristics on svc and
// builds a channel on them.
func DiscoverBLEChannel(svc *bluetooth.DeviceService, writeUUID, notifyUUID string, framer *Framer, maxWrite int) (*BLEChannel, error) {
	wu, err := bluetooth.ParseUUID(writeUUID)
	if err != nil {
		return nil, fmt.Errorf("parse write uuid: %w", err)
	}
	nu, err := bluetooth.ParseUUID(notifyUUID)
	if err != nil {
		return nil, fmt.Errorf("parse notify uuid: %w", err)
	}

	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{wu, nu})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}

	var writer, notify *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch chars[i].UUID() {
		case wu:
			writer = &chars[i]
		case nu:
			notify = &chars[i]
		}
	}
	if writer == nil || notify == nil {
		return nil, fmt.Errorf("service is missing characteristic %s or %s", writeUUID, notifyUUID)
	}

	logrus.WithFields(logrus.Fields{
		"function": "DiscoverBLEChannel",
		"write":    writeUUID,
		"notify":   notifyUUID,
	}).Info("Resolved GATT characteristics")

	return NewBLEChannel(writer, notify, framer, maxWrite)
}

// Send implements Channel.
func (c *BLEChannel) Send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrChannelClosed
	}

	frame, err := c.framer.Encode(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for off := 0; off < len(frame); off += c.maxWrite {
		end := off + c.maxWrite
		if end > len(frame) {
			end = len(frame)
		}
		if _, err := c.writer.WriteWithoutResponse(frame[off:end]); err != nil {
			return fmt.Errorf("write %s frame at offset %d: %w", cmd.Op, off, err)
		}
	}
	return nil
}

// SetConnected records link state changes reported by the adapter's connect handler.
func (c *BLEChannel) SetConnected(connected bool) {
	c.connected.Store(connected)
}

// IsConnected implements ConnectionState.
func (c *BLEChannel) IsConnected() bool {
	return c.connected.Load()
}

// Close disables notifications and marks the channel disconnected.
func (c *BLEChannel) Close() error {
	if !c.connected.Swap(false) {
		return nil
	}
	return c.notify.EnableNotifications(nil)
}
