// file: internal/session/session.go
package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dkoosis/promptd/internal/fsm"
	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/metrics"
	"github.com/dkoosis/promptd/internal/registry"
	"github.com/dkoosis/promptd/internal/template"
	"github.com/dkoosis/promptd/internal/transport"
)

// Resolver is the registry contract the session depends on, narrowed for
// test doubles.
type Resolver interface {
	Resolve(ctx context.Context, name, selector string, args map[string]template.Value) (*registry.RenderedPrompt, error)
}

// FrameValidator checks inbound frames before dispatch. A schema validator
// satisfies this; nil disables validation.
type FrameValidator interface {
	Validate(ctx context.Context, data []byte) error
}

// Options configures a session.
type Options struct {
	// ChunkSize is the byte budget per chunk payload; 0 uses DefaultChunkSize.
	ChunkSize int
	// Validator checks inbound frames; nil disables schema validation.
	Validator FrameValidator
	// Metrics records request outcomes; nil disables collection.
	Metrics *metrics.Collector
}

// request tracks one in-flight resolve-and-stream operation.
type request struct {
	id        string
	machine   fsm.FSM
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// markCancelled flips the request to cancelled exactly once, cancelling its
// context. Returns false when the request was already cancelled.
func (r *request) markCancelled() bool {
	if r.cancelled.Swap(true) {
		return false
	}
	r.cancel()
	return true
}

// Session owns one client connection's protocol state: the set of in-flight
// requests keyed by request ID, each with its own state machine. Requests
// run concurrently; a slow stream never blocks another request's progress.
// The registry and everything below it never see the session.
type Session struct {
	id        string
	transport transport.Transport
	resolver  Resolver
	logger    logging.Logger
	opts      Options

	mu       sync.Mutex
	requests map[string]*request

	wg sync.WaitGroup
}

// New creates a session over an accepted transport.
func New(tr transport.Transport, resolver Resolver, logger logging.Logger, opts Options) *Session {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		transport: tr,
		resolver:  resolver,
		logger:    logger.WithField("component", "session").WithField("session_id", id),
		opts:      opts,
		requests:  make(map[string]*request),
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Run reads frames until the transport closes or ctx is cancelled, then
// cancels in-flight requests and waits for their goroutines to drain.
// Returns nil on orderly closure.
func (s *Session) Run(ctx context.Context) error {
	if s.opts.Metrics != nil {
		s.opts.Metrics.SessionOpened()
		defer s.opts.Metrics.SessionClosed()
	}
	s.logger.Info("Session started.")
	defer s.logger.Info("Session finished.")

	var loopErr error
	for {
		message, err := s.transport.ReadMessage(ctx)
		if err != nil {
			if !transport.IsClosedError(err) && ctx.Err() == nil {
				s.logger.Warn("Read failed; closing session.", "error", err)
				loopErr = err
			}
			break
		}
		s.dispatch(ctx, message)
	}

	s.cancelAll()
	s.wg.Wait()
	return loopErr
}

// dispatch routes one validated inbound frame.
func (s *Session) dispatch(ctx context.Context, message []byte) {
	header, err := peekHeader(message)
	if err != nil {
		s.sendError(ctx, header.RequestID, KindInvalidRequest, "malformed frame")
		return
	}

	if s.opts.Validator != nil {
		if err := s.opts.Validator.Validate(ctx, message); err != nil {
			s.logger.Warn("Frame failed schema validation.", "type", header.Type, "error", err)
			s.sendError(ctx, header.RequestID, KindInvalidRequest, err.Error())
			return
		}
	}

	switch header.Type {
	case FrameResolve:
		s.handleResolve(ctx, message)
	case FrameCancel:
		s.handleCancel(header.RequestID)
	default:
		s.sendError(ctx, header.RequestID, KindInvalidRequest,
			"unsupported frame type "+string(header.Type))
	}
}

// handleResolve registers a request and runs its lifecycle in its own goroutine.
func (s *Session) handleResolve(ctx context.Context, message []byte) {
	var req ResolveRequest
	if err := json.Unmarshal(message, &req); err != nil {
		s.sendError(ctx, "", KindInvalidRequest, "malformed resolve frame")
		return
	}
	if req.TemplateName == "" {
		s.sendError(ctx, req.RequestID, KindInvalidRequest, "template_name is required")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		// Adapter-assigned ID, echoed in every outbound frame.
		requestID = uuid.NewString()
	}

	machine, err := newRequestMachine(s.logger)
	if err != nil {
		s.logger.Error("Failed to build request machine.", "error", err)
		s.sendError(ctx, requestID, KindInternal, "internal error")
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	tracked := &request{id: requestID, machine: machine, cancel: cancel}

	s.mu.Lock()
	if _, exists := s.requests[requestID]; exists {
		s.mu.Unlock()
		cancel()
		s.sendError(ctx, requestID, KindInvalidRequest, "request_id already in flight")
		return
	}
	s.requests[requestID] = tracked
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.RequestStarted()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(requestID)
		defer cancel()
		s.runRequest(reqCtx, tracked, req)
	}()
}

// handleCancel flags an in-flight request; its goroutine emits the terminal
// cancelled frame once work has stopped. Unknown IDs are logged and ignored
// (the request may have completed between the client's send and our receive).
func (s *Session) handleCancel(requestID string) {
	s.mu.Lock()
	tracked := s.requests[requestID]
	s.mu.Unlock()

	if tracked == nil {
		s.logger.Debug("Cancel for unknown or finished request.", "request_id", requestID)
		return
	}
	if tracked.markCancelled() {
		s.logger.Info("Request cancelled by client.", "request_id", requestID)
	}
}

// runRequest drives one request through its state machine:
// started acknowledgement, resolve, chunked streaming, terminal frame.
func (s *Session) runRequest(ctx context.Context, tracked *request, req ResolveRequest) {
	// sendCtx deliberately ignores the request context: terminal frames must
	// still go out after cancellation stops the work.
	sendCtx := context.Background()

	transitionOrLog := func(event fsm.Event) {
		if err := tracked.machine.Transition(ctx, event, nil); err != nil {
			s.logger.Error("Unexpected request state transition failure.",
				"request_id", tracked.id, "event", event, "state", tracked.machine.CurrentState(), "error", err)
		}
	}

	transitionOrLog(EventBeginResolve)
	s.send(sendCtx, StartedFrame{Type: FrameStarted, RequestID: tracked.id})

	if tracked.cancelled.Load() {
		s.finishCancelled(sendCtx, tracked)
		return
	}

	args, err := convertArguments(req.Arguments)
	if err != nil {
		transitionOrLog(EventResolveFailed)
		s.finishError(sendCtx, tracked.id, KindInvalidRequest, err.Error())
		return
	}

	prompt, err := s.resolver.Resolve(ctx, req.TemplateName, req.Version, args)
	if tracked.cancelled.Load() {
		// Cancellation won the race regardless of the resolve outcome.
		s.finishCancelled(sendCtx, tracked)
		return
	}
	if err != nil {
		transitionOrLog(EventResolveFailed)
		kind, message := classifyResolveError(err)
		s.finishError(sendCtx, tracked.id, kind, message)
		return
	}

	transitionOrLog(EventResolveSucceeded)

	sequence := 0
	for _, payload := range splitChunks(prompt.Text, s.opts.ChunkSize) {
		// The cancellation flag is observed before every chunk so a cancel
		// stops the stream before the next frame goes out.
		if tracked.cancelled.Load() {
			s.finishCancelled(sendCtx, tracked)
			return
		}
		if !s.send(sendCtx, ChunkFrame{
			Type:           FrameChunk,
			RequestID:      tracked.id,
			SequenceNumber: sequence,
			Payload:        payload,
		}) {
			// Transport gone mid-stream: stop and free state, nothing to retry.
			transitionOrLog(EventCancel)
			return
		}
		sequence++
	}

	transitionOrLog(EventStreamFinished)
	s.send(sendCtx, CompletedFrame{
		Type:         FrameCompleted,
		RequestID:    tracked.id,
		TemplateName: prompt.Name,
		Version:      prompt.Version,
	})
	if s.opts.Metrics != nil {
		s.opts.Metrics.RequestCompleted()
	}
}

// finishCancelled transitions to cancelled and acknowledges with the
// terminal cancelled frame.
func (s *Session) finishCancelled(sendCtx context.Context, tracked *request) {
	if err := tracked.machine.Transition(sendCtx, EventCancel, nil); err != nil {
		s.logger.Debug("Cancel transition skipped.", "request_id", tracked.id, "state", tracked.machine.CurrentState())
	}
	s.send(sendCtx, CancelledFrame{Type: FrameCancelled, RequestID: tracked.id})
	if s.opts.Metrics != nil {
		s.opts.Metrics.RequestCancelled()
	}
}

// finishError emits the terminal error frame for a failed request.
func (s *Session) finishError(sendCtx context.Context, requestID, kind, message string) {
	s.send(sendCtx, ErrorFrame{Type: FrameError, RequestID: requestID, Kind: kind, Message: message})
	if s.opts.Metrics != nil {
		s.opts.Metrics.RequestFailed("session", kind+": "+message)
	}
}

// sendError emits a non-terminal protocol error for frames that never became
// requests (schema violations, unknown types).
func (s *Session) sendError(ctx context.Context, requestID, kind, message string) {
	s.send(ctx, ErrorFrame{Type: FrameError, RequestID: requestID, Kind: kind, Message: message})
}

// send marshals and writes a frame, reporting success. Write failures on a
// closed transport are expected during teardown and only logged at debug.
func (s *Session) send(ctx context.Context, frame interface{}) bool {
	data, err := encodeFrame(frame)
	if err != nil {
		s.logger.Error("Failed to encode outbound frame.", "error", err)
		return false
	}
	if err := s.transport.WriteMessage(ctx, data); err != nil {
		if transport.IsClosedError(err) {
			s.logger.Debug("Write on closed transport.", "error", err)
		} else {
			s.logger.Warn("Failed to write frame.", "error", err)
		}
		return false
	}
	return true
}

// forget removes a finished request from the in-flight set.
func (s *Session) forget(requestID string) {
	s.mu.Lock()
	delete(s.requests, requestID)
	s.mu.Unlock()
}

// cancelAll flags every in-flight request as cancelled during session teardown.
func (s *Session) cancelAll() {
	s.mu.Lock()
	tracked := make([]*request, 0, len(s.requests))
	for _, r := range s.requests {
		tracked = append(tracked, r)
	}
	s.mu.Unlock()
	for _, r := range tracked {
		r.markCancelled()
	}
}

// convertArguments maps raw JSON argument values onto the closed value variant.
func convertArguments(raw map[string]interface{}) (map[string]template.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	args := make(map[string]template.Value, len(raw))
	for name, value := range raw {
		converted, err := template.FromInterface(value)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", name)
		}
		args[name] = converted
	}
	return args, nil
}

// classifyResolveError maps a resolution failure onto a wire error kind.
func classifyResolveError(err error) (kind, message string) {
	if resolveErr, ok := registry.AsResolveError(err); ok {
		return resolveErr.Code.Kind(), resolveErr.Message
	}
	return KindInternal, "internal error"
}
