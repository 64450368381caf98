package transport

import (
	"errors"
	"sync"
)

// fakeCharacteristic implements GATTWriter and GATTNotifier for testing.
type fakeCharacteristic struct {
	mu        sync.Mutex
	writes    [][]byte
	callback  func([]byte)
	failWrite bool
	enableErr error
}

func (f *fakeCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return 0, errors.New("gatt write failed")
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeCharacteristic) EnableNotifications(callback func(buf []byte)) error {
	if f.enableErr != nil {
		return f.enableErr
	}
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()
	return nil
}

func (f *fakeCharacteristic) notify(buf []byte) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(buf)
	}
}

func (f *fakeCharacteristic) joined() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.writes {
		out = append(out, w...)
	}
	return out
}
