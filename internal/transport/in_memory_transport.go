// file: internal/transport/in_memory_transport.go
package transport

import (
	"context"
	"sync"
)

// InMemoryTransport implements Transport over in-memory channels. It exists
// for tests: two linked instances communicate without real I/O.
type InMemoryTransport struct {
	incoming  chan []byte
	outgoing  chan []byte
	closed    bool
	closeCh   chan struct{}
	closeLock sync.RWMutex
	closeOnce sync.Once
}

// InMemoryTransportPair contains two linked InMemoryTransport instances.
// Frames written to one side can be read from the other.
type InMemoryTransportPair struct {
	ClientTransport *InMemoryTransport
	ServerTransport *InMemoryTransport
}

// NewInMemoryTransportPair creates a connected pair of in-memory transports.
func NewInMemoryTransportPair() *InMemoryTransportPair {
	// Buffered so tests can write a handful of frames without a reader.
	clientToServer := make(chan []byte, 100)
	serverToClient := make(chan []byte, 100)

	return &InMemoryTransportPair{
		ClientTransport: &InMemoryTransport{
			incoming: serverToClient,
			outgoing: clientToServer,
			closeCh:  make(chan struct{}),
		},
		ServerTransport: &InMemoryTransport{
			incoming: clientToServer,
			outgoing: serverToClient,
			closeCh:  make(chan struct{}),
		},
	}
}

// ReadMessage implements Transport.ReadMessage.
func (t *InMemoryTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.closeLock.RLock()
	if t.closed {
		t.closeLock.RUnlock()
		return nil, NewClosedError("read")
	}
	t.closeLock.RUnlock()

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.closeCh:
		return nil, NewClosedError("read")
	case message, ok := <-t.incoming:
		if !ok {
			return nil, NewClosedError("read")
		}
		return message, nil
	}
}

// WriteMessage implements Transport.WriteMessage. The frame is validated the
// same way the NDJSON transport validates, so tests exercise identical rules.
func (t *InMemoryTransport) WriteMessage(ctx context.Context, message []byte) error {
	t.closeLock.RLock()
	if t.closed {
		t.closeLock.RUnlock()
		return NewClosedError("write")
	}
	t.closeLock.RUnlock()

	if err := ValidateMessage(message); err != nil {
		return err
	}

	// Copy so the caller may reuse its buffer.
	frame := make([]byte, len(message))
	copy(frame, message)

	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case <-t.closeCh:
		return NewClosedError("write")
	case t.outgoing <- frame:
		return nil
	}
}

// Close implements Transport.Close. It unblocks pending reads and writes on
// this side; the peer observes closure on its next read.
func (t *InMemoryTransport) Close() error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.closeOnce.Do(func() { close(t.closeCh) })
	return nil
}
