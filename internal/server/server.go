// Package server wires the template store, registry, schema validator, and
// protocol sessions into a running process. It handles server lifecycle
// management including initialization, runtime operation, and graceful
// shutdown for both the stdio and TCP transports.
// file: internal/server/server.go
package server

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/promptd/internal/config"
	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/metrics"
	"github.com/dkoosis/promptd/internal/registry"
	"github.com/dkoosis/promptd/internal/schema"
	"github.com/dkoosis/promptd/internal/session"
	"github.com/dkoosis/promptd/internal/store"
	"github.com/dkoosis/promptd/internal/transport"
)

// Server owns the shared components behind every session: the template store,
// the prompt registry reading from it, the frame validator, and the metrics
// collector. Sessions are created per connection and share all of them.
type Server struct {
	cfg       *config.Config
	logger    logging.Logger
	store     *store.Store
	registry  *registry.Registry
	validator *schema.Validator
	metrics   *metrics.Collector
	watcher   *store.Watcher
	startTime time.Time

	mu         sync.Mutex
	listenAddr string

	sessionWG sync.WaitGroup
}

// New assembles a server from configuration. Recipes are not loaded until Run.
func New(cfg *config.Config, logger logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if logger == nil {
		logger = logging.GetNoopLogger()
	}

	templateStore := store.New(logger)
	srv := &Server{
		cfg:       cfg,
		logger:    logger.WithField("component", "server"),
		store:     templateStore,
		registry:  registry.New(templateStore, logger),
		metrics:   metrics.NewCollector(20),
		startTime: time.Now(),
	}
	if !cfg.Schema.Disabled {
		srv.validator = schema.NewValidator(logger)
	}
	return srv, nil
}

// Metrics returns a snapshot of the server's counters, stamped with the
// current number of published template names.
func (s *Server) Metrics() metrics.Snapshot {
	return s.metrics.GetSnapshot(len(s.store.Names()))
}

// ListenerAddr returns the bound TCP address once the listener is up, or ""
// before that. Useful when the configuration requested an ephemeral port.
func (s *Server) ListenerAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Run loads the recipe directory, starts the watcher if configured, and
// serves sessions on the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting prompt server.",
		"name", s.cfg.Server.Name,
		"transport", s.cfg.Server.Transport,
		"recipes_dir", s.cfg.Recipes.Dir)

	if s.validator != nil {
		if err := s.validator.Initialize(ctx); err != nil {
			return errors.Wrap(err, "failed to initialize frame validator")
		}
	}

	published, err := store.LoadDir(s.store, s.cfg.Recipes.Dir, s.logger)
	if err != nil {
		return errors.Wrapf(err, "failed to load recipe directory %q", s.cfg.Recipes.Dir)
	}
	s.logger.Info("Recipes loaded.", "templates", published, "dir", s.cfg.Recipes.Dir)

	if s.cfg.Recipes.Watch {
		watcher, err := store.NewWatcher(s.store, s.cfg.Recipes.Dir, s.logger)
		if err != nil {
			return errors.Wrap(err, "failed to create recipe watcher")
		}
		if err := watcher.Start(); err != nil {
			return errors.Wrap(err, "failed to start recipe watcher")
		}
		s.watcher = watcher
		defer func() {
			if stopErr := s.watcher.Stop(); stopErr != nil {
				s.logger.Warn("Failed to stop recipe watcher.", "error", stopErr)
			}
		}()
	}

	switch s.cfg.Server.Transport {
	case "stdio":
		err = s.runStdio(ctx)
	case "tcp":
		err = s.runTCP(ctx)
	default:
		err = errors.Newf("unsupported transport %q", s.cfg.Server.Transport)
	}

	s.sessionWG.Wait()
	s.logger.Info("Server stopped.", "uptime", time.Since(s.startTime))
	return err
}

// runStdio serves a single session over standard input and output. The
// process exits when the client closes its end.
func (s *Server) runStdio(ctx context.Context) error {
	s.logger.Info("Serving on stdio.")
	tr := transport.NewNDJSONTransport(os.Stdin, os.Stdout, nil, s.logger)
	return s.serveSession(ctx, tr)
}

// runTCP accepts connections until ctx is cancelled, serving one session per
// connection.
func (s *Server) runTCP(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %q", s.cfg.Server.ListenAddress)
	}
	s.mu.Lock()
	s.listenAddr = listener.Addr().String()
	s.mu.Unlock()
	s.logger.Info("Serving on TCP.", "address", listener.Addr().String())

	// Closing the listener unblocks Accept when ctx ends.
	go func() {
		<-ctx.Done()
		if closeErr := listener.Close(); closeErr != nil {
			s.logger.Debug("Listener close reported error.", "error", closeErr)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil // Orderly shutdown.
			}
			return errors.Wrap(err, "accept failed")
		}
		s.sessionWG.Add(1)
		go func(conn net.Conn) {
			defer s.sessionWG.Done()
			tr := transport.NewNDJSONTransport(conn, conn, conn, s.logger)
			if err := s.serveSession(ctx, tr); err != nil {
				s.logger.Warn("Session ended with error.",
					"remote", conn.RemoteAddr().String(), "error", err)
			}
		}(conn)
	}
}

// serveSession runs one protocol session over the given transport and closes
// the transport when the session ends.
func (s *Server) serveSession(ctx context.Context, tr transport.Transport) error {
	defer func() {
		if err := tr.Close(); err != nil {
			s.logger.Debug("Transport close reported error.", "error", err)
		}
	}()

	opts := session.Options{
		ChunkSize: s.cfg.Server.ChunkSize,
		Metrics:   s.metrics,
	}
	if s.validator != nil {
		opts.Validator = s.validator
	}
	sess := session.New(tr, s.registry, s.logger, opts)
	return sess.Run(ctx)
}
