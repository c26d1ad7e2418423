// Package transport defines interfaces and implementations for sending and
// receiving protocol frames as newline-delimited JSON.
package transport

// file: internal/transport/transport.go

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/dkoosis/promptd/internal/logging"
)

// MaxMessageSize defines the maximum allowed size for a single frame in bytes.
// This helps prevent memory exhaustion from a misbehaving peer.
const MaxMessageSize = 1024 * 1024 // 1MB.

// Transport defines the interface for sending and receiving protocol frames.
// Implementations must be concurrency-safe: WriteMessage may be called from
// multiple goroutines and each call must emit exactly one intact frame.
type Transport interface {
	// ReadMessage reads a single frame from the transport.
	// The context allows for cancellation of long-running reads.
	ReadMessage(ctx context.Context) ([]byte, error)

	// WriteMessage sends a single frame over the transport.
	// The context allows for cancellation of long-running writes.
	WriteMessage(ctx context.Context, message []byte) error

	// Close shuts down the transport. Blocked reads and writes are unblocked
	// and return errors.
	Close() error
}

// ValidateMessage performs structural validation on a frame before it is
// handed to (or emitted by) the session layer. A frame must be a JSON object
// carrying a non-empty string "type" discriminator.
func ValidateMessage(message []byte) error {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return NewParseError(message, err)
	}

	rawType, ok := frame["type"]
	if !ok {
		return NewError(ErrInvalidMessage, "missing 'type' field", nil).
			WithContext("messagePreview", preview(message))
	}

	var frameType string
	if err := json.Unmarshal(rawType, &frameType); err != nil || frameType == "" {
		return NewError(ErrInvalidMessage, "'type' must be a non-empty string", err).
			WithContext("messagePreview", preview(message))
	}

	return nil
}

// preview returns the first 100 bytes of a message for error context.
func preview(message []byte) string {
	return string(message[:minInt(len(message), 100)])
}

// minInt returns the smaller of x or y.
func minInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// NDJSONTransport implements Transport for newline-delimited JSON over any
// reader/writer pair. It serves stdio as well as TCP connections.
type NDJSONTransport struct {
	reader    *bufio.Reader
	writer    io.Writer
	closer    io.Closer
	logger    logging.Logger
	writeLock sync.Mutex // Ensures atomic frame writes.
	closed    bool
	closeLock sync.RWMutex

	// pending holds the result channel of an in-flight read goroutine whose
	// caller was cancelled before the frame arrived. The next ReadMessage
	// consumes it instead of starting a second goroutine on the shared
	// reader, so no frame is lost and reads never race.
	readLock sync.Mutex
	pending  chan readResult
}

// readResult is the outcome of one background frame read.
type readResult struct {
	data []byte
	err  error
}

// NewNDJSONTransport creates a transport reading and writing NDJSON frames
// from the provided streams. closer may be nil for streams that outlive the
// transport (e.g. stdio).
func NewNDJSONTransport(reader io.Reader, writer io.Writer, closer io.Closer, logger logging.Logger) Transport {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &NDJSONTransport{
		reader: bufio.NewReader(reader),
		writer: writer,
		closer: closer,
		logger: logger.WithField("component", "ndjson_transport"),
	}
}

// ReadMessage reads a single newline-delimited frame, validating it before return.
func (t *NDJSONTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.closeLock.RLock()
	if t.closed {
		t.closeLock.RUnlock()
		return nil, NewClosedError("read")
	}
	t.closeLock.RUnlock()

	// Read in a separate goroutine to allow for context cancellation. A
	// goroutine abandoned by a cancelled caller keeps running; its result
	// channel stays in pending and is drained by the next call.
	t.readLock.Lock()
	resultCh := t.pending
	if resultCh == nil {
		resultCh = make(chan readResult, 1)
		t.pending = resultCh
		go t.readFrame(resultCh)
	}
	t.readLock.Unlock()

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case result := <-resultCh:
		t.readLock.Lock()
		t.pending = nil
		t.readLock.Unlock()
		return result.data, result.err
	}
}

// readFrame reads one newline-delimited frame from the shared reader and
// delivers it on resultCh.
func (t *NDJSONTransport) readFrame(resultCh chan<- readResult) {
	var buffer bytes.Buffer
	for {
		line, isPrefix, err := t.reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				resultCh <- readResult{nil, NewError(ErrTransportClosed, "connection closed by peer", io.EOF)}
			} else {
				resultCh <- readResult{nil, NewError(ErrGeneric, "failed to read frame", err)}
			}
			return
		}
		buffer.Write(line)
		if buffer.Len() > MaxMessageSize {
			fragment := buffer.Bytes()
			resultCh <- readResult{nil, NewMessageSizeError(buffer.Len(), MaxMessageSize, fragment[:minInt(len(fragment), 100)])}
			return
		}
		if !isPrefix {
			break
		}
	}

	message := buffer.Bytes()
	if len(bytes.TrimSpace(message)) == 0 {
		// Tolerate blank lines between frames.
		resultCh <- readResult{nil, NewError(ErrInvalidMessage, "empty frame", nil)}
		return
	}
	if err := ValidateMessage(message); err != nil {
		t.logger.Warn("Invalid frame received.", "validationError", err)
		resultCh <- readResult{nil, err}
		return
	}
	resultCh <- readResult{message, nil}
}

// WriteMessage writes a single frame followed by a newline. Concurrent calls
// are serialized so frames never interleave.
func (t *NDJSONTransport) WriteMessage(ctx context.Context, message []byte) error {
	t.closeLock.RLock()
	if t.closed {
		t.closeLock.RUnlock()
		return NewClosedError("write")
	}
	t.closeLock.RUnlock()

	if err := ValidateMessage(message); err != nil {
		return err
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message[:minInt(len(message), 100)])
	}

	if err := ctx.Err(); err != nil {
		return NewTimeoutError("write", err)
	}

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	buf := make([]byte, len(message)+1)
	copy(buf, message)
	buf[len(message)] = '\n'

	n, err := t.writer.Write(buf)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		t.logger.Error("Failed to write frame.", "error", err)
		return NewError(ErrGeneric, "failed to write frame", err)
	}
	return nil
}

// Close implements Transport.Close.
func (t *NDJSONTransport) Close() error {
	t.closeLock.Lock()
	defer t.closeLock.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return NewError(ErrTransportClosed, "failed to close underlying stream", err)
		}
	}
	return nil
}
