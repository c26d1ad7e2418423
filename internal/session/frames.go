// Package session implements the protocol adapter: it maps inbound frames to
// registry calls, streams rendered prompts back in ordered chunks, and drives
// an explicit per-request state machine including cancellation.
package session

// file: internal/session/frames.go

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// FrameType discriminates protocol frames on the wire.
type FrameType string

// Frame types. Inbound: resolve, cancel. Outbound: started, chunk, and
// exactly one terminal frame per request (completed, error, or cancelled).
const (
	FrameResolve   FrameType = "resolve"
	FrameCancel    FrameType = "cancel"
	FrameStarted   FrameType = "started"
	FrameChunk     FrameType = "chunk"
	FrameCompleted FrameType = "completed"
	FrameError     FrameType = "error"
	FrameCancelled FrameType = "cancelled"
)

// ResolveRequest asks the server to resolve and stream a template.
type ResolveRequest struct {
	Type FrameType `json:"type"`
	// RequestID correlates frames; when empty the adapter assigns one and
	// echoes it in every outbound frame.
	RequestID    string `json:"request_id,omitempty"`
	TemplateName string `json:"template_name"`
	// Version is "latest" (or empty) or the decimal form of an exact version.
	Version string `json:"version,omitempty"`
	// Arguments carries caller-supplied parameter values.
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CancelRequest asks the server to stop an in-flight request.
type CancelRequest struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// StartedFrame acknowledges that a resolve request was accepted.
type StartedFrame struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// ChunkFrame carries one unit of streamed output. SequenceNumber is strictly
// increasing within a request, starting at 0.
type ChunkFrame struct {
	Type           FrameType `json:"type"`
	RequestID      string    `json:"request_id"`
	SequenceNumber int       `json:"sequence_number"`
	Payload        string    `json:"payload"`
}

// CompletedFrame is the terminal frame of a successful request. It names the
// exact template version the stream was rendered from.
type CompletedFrame struct {
	Type         FrameType `json:"type"`
	RequestID    string    `json:"request_id"`
	TemplateName string    `json:"template_name,omitempty"`
	Version      int       `json:"version,omitempty"`
}

// ErrorFrame is the terminal frame of a failed request. Kind is a stable
// machine-readable category; Message is human-readable detail.
type ErrorFrame struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// CancelledFrame is the terminal frame of a cancelled request.
type CancelledFrame struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// Wire-level error kinds not covered by the resolution taxonomy.
const (
	// KindInvalidRequest marks frames that fail structural or schema validation.
	KindInvalidRequest = "invalid_request"
	// KindInternal marks unexpected server-side failures.
	KindInternal = "internal"
)

// frameHeader is the minimal shape peeked at to dispatch an inbound frame.
type frameHeader struct {
	Type      FrameType `json:"type"`
	RequestID string    `json:"request_id"`
}

// peekHeader extracts the frame type and request ID without decoding the body.
func peekHeader(data []byte) (frameHeader, error) {
	var header frameHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return header, errors.Wrap(err, "failed to decode frame header")
	}
	return header, nil
}

// encodeFrame marshals an outbound frame.
func encodeFrame(frame interface{}) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode frame")
	}
	return data, nil
}
