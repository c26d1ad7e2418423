// file: internal/session/session_test.go
package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/metrics"
	"github.com/dkoosis/promptd/internal/registry"
	"github.com/dkoosis/promptd/internal/template"
	"github.com/dkoosis/promptd/internal/transport"
)

// stubResolver is a controllable Resolver double.
type stubResolver struct {
	mu       sync.Mutex
	prompt   *registry.RenderedPrompt
	err      error
	gate     chan struct{} // When non-nil, Resolve blocks until closed or ctx ends.
	lastArgs map[string]template.Value
}

func (r *stubResolver) Resolve(ctx context.Context, name, selector string, args map[string]template.Value) (*registry.RenderedPrompt, error) {
	r.mu.Lock()
	r.lastArgs = args
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.prompt, nil
}

// rejectingValidator fails every frame.
type rejectingValidator struct{}

func (v rejectingValidator) Validate(_ context.Context, _ []byte) error {
	return assert.AnError
}

// harness wires a session over an in-memory transport pair and runs it.
type harness struct {
	client  *transport.InMemoryTransport
	session *Session
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T, resolver Resolver, opts Options) *harness {
	t.Helper()

	pair := transport.NewInMemoryTransportPair()
	sess := New(pair.ServerTransport, resolver, logging.GetNoopLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	h := &harness{client: pair.ClientTransport, session: sess, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Session did not shut down within the deadline.")
		}
	})
	return h
}

// sendFrame marshals and writes a frame from the client side.
func (h *harness) sendFrame(t *testing.T, frame map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err, "Test frame should marshal.")
	require.NoError(t, h.client.WriteMessage(context.Background(), data),
		"Client write should succeed.")
}

// readFrame reads one frame from the client side with a deadline.
func (h *harness) readFrame(t *testing.T) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := h.client.ReadMessage(ctx)
	require.NoError(t, err, "Client should receive a frame before the deadline.")

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame), "Received frame should be valid JSON.")
	return frame
}

// readUntilTerminal collects frames through the first terminal frame.
func (h *harness) readUntilTerminal(t *testing.T) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for {
		frame := h.readFrame(t)
		frames = append(frames, frame)
		switch frame["type"] {
		case string(FrameCompleted), string(FrameError), string(FrameCancelled):
			return frames
		}
		require.Less(t, len(frames), 1000, "Terminal frame should arrive eventually.")
	}
}

func TestSession_Resolve_StreamsChunksInOrder(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{
		Name: "greeting", Version: 3, Text: "Hello, streaming world!",
	}}
	h := newHarness(t, resolver, Options{ChunkSize: 8})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-1", "template_name": "greeting",
	})
	frames := h.readUntilTerminal(t)

	require.GreaterOrEqual(t, len(frames), 3, "Expected started, chunks, and completed frames.")
	assert.Equal(t, "started", frames[0]["type"], "First frame should acknowledge the request.")
	assert.Equal(t, "req-1", frames[0]["request_id"], "Client-supplied ID should be echoed.")

	var rebuilt string
	for i, frame := range frames[1 : len(frames)-1] {
		require.Equal(t, "chunk", frame["type"], "Middle frames should all be chunks.")
		assert.Equal(t, float64(i), frame["sequence_number"],
			"Sequence numbers should increase from zero without gaps.")
		payload, ok := frame["payload"].(string)
		require.True(t, ok, "Chunk payload should be a string.")
		assert.LessOrEqual(t, len(payload), 8, "Chunk payloads should respect the size budget.")
		rebuilt += payload
	}
	assert.Equal(t, "Hello, streaming world!", rebuilt,
		"Concatenated chunks should equal the rendered text.")

	terminal := frames[len(frames)-1]
	assert.Equal(t, "completed", terminal["type"], "Request should end with a completed frame.")
	assert.Equal(t, "greeting", terminal["template_name"], "Completed frame should name the template.")
	assert.Equal(t, float64(3), terminal["version"], "Completed frame should carry the exact version.")
}

func TestSession_Resolve_AssignsRequestIDWhenOmitted(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{"type": "resolve", "template_name": "t"})
	frames := h.readUntilTerminal(t)

	id, ok := frames[0]["request_id"].(string)
	require.True(t, ok, "Started frame should carry a request ID.")
	assert.NotEmpty(t, id, "Adapter should assign an ID when the client omits one.")
	for _, frame := range frames {
		assert.Equal(t, id, frame["request_id"], "Every frame should echo the assigned ID.")
	}
}

func TestSession_Resolve_ConvertsArgumentsToValues(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "template_name": "t",
		"arguments": map[string]interface{}{
			"name":  "Ada",
			"count": float64(3),
			"vip":   true,
			"tags":  []interface{}{"a", "b"},
		},
	})
	h.readUntilTerminal(t)

	resolver.mu.Lock()
	args := resolver.lastArgs
	resolver.mu.Unlock()

	require.Len(t, args, 4, "All arguments should reach the resolver.")
	assert.Equal(t, template.KindString, args["name"].Kind(), "String argument should convert.")
	assert.Equal(t, template.KindNumber, args["count"].Kind(), "Number argument should convert.")
	assert.Equal(t, template.KindBool, args["vip"].Kind(), "Bool argument should convert.")
	assert.Equal(t, template.KindList, args["tags"].Kind(), "List argument should convert.")
}

func TestSession_Resolve_UnknownTemplate_SendsErrorFrame(t *testing.T) {
	resolver := &stubResolver{err: registry.NewNotFoundError("ghost", "latest")}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-nf", "template_name": "ghost",
	})
	frames := h.readUntilTerminal(t)

	terminal := frames[len(frames)-1]
	require.Equal(t, "error", terminal["type"], "Failed resolution should end in an error frame.")
	assert.Equal(t, "not_found", terminal["kind"], "Error kind should classify the failure.")
	assert.NotEmpty(t, terminal["message"], "Error frame should carry a message.")
	for _, frame := range frames[:len(frames)-1] {
		assert.NotEqual(t, "chunk", frame["type"], "A failed request should emit no chunks.")
	}
}

func TestSession_Resolve_UnsupportedArgumentType_SendsErrorFrame(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-bad", "template_name": "t",
		"arguments": map[string]interface{}{"nested": map[string]interface{}{"k": "v"}},
	})
	frames := h.readUntilTerminal(t)

	terminal := frames[len(frames)-1]
	require.Equal(t, "error", terminal["type"], "Unconvertible arguments should fail the request.")
	assert.Equal(t, KindInvalidRequest, terminal["kind"], "Argument errors are client errors.")
}

func TestSession_Resolve_DuplicateRequestID_Rejected(t *testing.T) {
	gate := make(chan struct{})
	resolver := &stubResolver{
		gate:   gate,
		prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: ""},
	}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "dup", "template_name": "t",
	})
	started := h.readFrame(t)
	require.Equal(t, "started", started["type"], "First request should be acknowledged.")

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "dup", "template_name": "t",
	})
	rejection := h.readFrame(t)
	require.Equal(t, "error", rejection["type"], "Second use of an in-flight ID should be rejected.")
	assert.Equal(t, KindInvalidRequest, rejection["kind"],
		"Duplicate request IDs are a client error.")

	close(gate)
	terminal := h.readFrame(t)
	assert.Equal(t, "completed", terminal["type"],
		"The original request should finish untouched by the rejection.")
}

func TestSession_Cancel_BeforeStreaming_EmitsCancelledAndNoChunks(t *testing.T) {
	resolver := &stubResolver{
		gate:   make(chan struct{}), // Never closed; only cancellation releases it.
		prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "never sent"},
	}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-c", "template_name": "t",
	})
	started := h.readFrame(t)
	require.Equal(t, "started", started["type"], "Request should be acknowledged before cancel.")

	h.sendFrame(t, map[string]interface{}{"type": "cancel", "request_id": "req-c"})

	terminal := h.readFrame(t)
	require.Equal(t, "cancelled", terminal["type"],
		"A cancelled request should end with a cancelled frame, not completed.")
	assert.Equal(t, "req-c", terminal["request_id"], "Cancelled frame should echo the request ID.")
}

func TestSession_Cancel_UnknownRequestID_Ignored(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{})

	// Must not produce a frame or disturb later requests.
	h.sendFrame(t, map[string]interface{}{"type": "cancel", "request_id": "no-such"})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-after", "template_name": "t",
	})
	frames := h.readUntilTerminal(t)
	assert.Equal(t, "completed", frames[len(frames)-1]["type"],
		"Requests after a stray cancel should proceed normally.")
}

func TestSession_UnsupportedFrameType_SendsErrorFrame(t *testing.T) {
	resolver := &stubResolver{}
	h := newHarness(t, resolver, Options{})

	h.sendFrame(t, map[string]interface{}{"type": "bogus", "request_id": "x"})

	frame := h.readFrame(t)
	require.Equal(t, "error", frame["type"], "Unknown frame types should be answered with an error.")
	assert.Equal(t, KindInvalidRequest, frame["kind"], "Unknown frame type is a client error.")
}

func TestSession_ValidatorRejection_SendsErrorFrame(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{Validator: rejectingValidator{}})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "req-v", "template_name": "t",
	})
	frame := h.readFrame(t)
	require.Equal(t, "error", frame["type"], "Schema-invalid frames should be rejected.")
	assert.Equal(t, KindInvalidRequest, frame["kind"],
		"Validation failures map to the invalid_request kind.")
}

func TestSession_ConcurrentRequests_EachGetsOwnTerminalFrame(t *testing.T) {
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "payload"}}
	h := newHarness(t, resolver, Options{})

	const requests = 5
	for i := 0; i < requests; i++ {
		h.sendFrame(t, map[string]interface{}{
			"type": "resolve", "request_id": string(rune('a' + i)), "template_name": "t",
		})
	}

	completedBy := make(map[string]bool)
	chunksBy := make(map[string]int)
	deadline := time.After(5 * time.Second)
	for len(completedBy) < requests {
		select {
		case <-deadline:
			t.Fatalf("Only %d of %d requests completed before the deadline.", len(completedBy), requests)
		default:
		}
		frame := h.readFrame(t)
		id, _ := frame["request_id"].(string)
		switch frame["type"] {
		case "chunk":
			chunksBy[id]++
		case "completed":
			require.False(t, completedBy[id], "Each request should complete exactly once.")
			completedBy[id] = true
		}
	}
	for id, count := range chunksBy {
		assert.Equal(t, 1, count, "Request %q should have streamed exactly one chunk.", id)
	}
}

func TestSession_Metrics_RecordOutcomes(t *testing.T) {
	collector := metrics.NewCollector(10)
	resolver := &stubResolver{prompt: &registry.RenderedPrompt{Name: "t", Version: 1, Text: "x"}}
	h := newHarness(t, resolver, Options{Metrics: collector})

	h.sendFrame(t, map[string]interface{}{
		"type": "resolve", "request_id": "m1", "template_name": "t",
	})
	h.readUntilTerminal(t)

	// The counter lands just after the terminal frame is written.
	require.Eventually(t, func() bool {
		return collector.GetSnapshot(0).CompletedRequests == 1
	}, 5*time.Second, 10*time.Millisecond, "Completed request should be counted.")

	snapshot := collector.GetSnapshot(0)
	assert.Equal(t, 1, snapshot.TotalSessions, "Session open should be counted.")
	assert.Equal(t, 1, snapshot.TotalRequests, "Accepted request should be counted.")
	assert.Zero(t, snapshot.FailedRequests, "No failures should be recorded.")
}
