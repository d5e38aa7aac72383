// Package mockserver is a local stand-in for the Angles REST API. It
// implements the endpoints used by the client and reporter and persists
// documents through gorm.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
	"github.com/ethpandaops/angles-client-go/pkg/mockserver/store"
)

// APIPrefix is the path every route is mounted under.
const APIPrefix = "/rest/api/v1.0"

const shutdownTimeout = 10 * time.Second

// Server exposes the mock server lifecycle.
type Server interface {
	// Init opens the store and builds the router without listening.
	Init(ctx context.Context) error
	// Handler returns the router. Init must have been called.
	Handler() http.Handler
	// Start initializes the server if needed and starts listening.
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the bound listen address once started.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.ServerConfig
	store      store.Store
	router     http.Handler
	httpServer *http.Server
	listener   net.Listener
	now        func() time.Time
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a new mock server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.ServerConfig,
) Server {
	return &server{
		log:  log.WithField("component", "mockserver"),
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
		done: make(chan struct{}),
	}
}

func (s *server) Init(ctx context.Context) error {
	if s.router != nil {
		return nil
	}

	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	s.router = s.buildRouter()

	return nil
}

func (s *server) Handler() http.Handler {
	return s.router
}

// Start binds the listener synchronously so port conflicts fail fast.
func (s *server) Start(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("Mock Angles server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

func (s *server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("Mock Angles server stopped")

	return nil
}
