// Package api serves a persisted timing database over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/indexstore"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

// Option configures the server.
type Option func(*server)

// WithIndex serves the index endpoints from store for the named database.
func WithIndex(store indexstore.Store, name string) Option {
	return func(s *server) {
		s.indexStore = store
		s.indexName = name
	}
}

type server struct {
	log    logrus.FieldLogger
	cfg    *config.APIConfig
	reader storage.Reader
	base   string

	indexStore indexstore.Store
	indexName  string

	mu       sync.RWMutex
	db       *timingdb.Database
	loadedAt time.Time

	httpServer *http.Server
	limiters   []*clientLimiters
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a new API server for the database persisted at base.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	reader storage.Reader,
	base string,
	opts ...Option,
) Server {
	s := &server{
		log:    log.WithField("component", "api"),
		cfg:    cfg,
		reader: reader,
		base:   base,
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the database and starts the HTTP server and reload loop. A
// database that does not exist yet is not an error; data endpoints answer
// 503 until a reload finds it.
func (s *server) Start(ctx context.Context) error {
	if err := s.reload(ctx); err != nil && !errors.Is(err, timingdb.ErrNotFound) {
		return fmt.Errorf("loading timing database: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Listen).Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	if s.cfg.ReloadInterval > 0 {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.reloadLoop(ctx)
		}()
	}

	return nil
}

// Stop gracefully shuts down the HTTP server. Calls after the first are
// no-ops.
func (s *server) Stop() error {
	s.stopOnce.Do(s.stop)

	return nil
}

func (s *server) stop() {
	close(s.done)

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

	for _, l := range s.limiters {
		l.stop()
	}

	s.log.Info("API server stopped")
}

func (s *server) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.reload(ctx); err != nil {
				s.log.WithError(err).Warn("Failed to reload timing database")
			}
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// reload replaces the served database with a fresh load from storage.
func (s *server) reload(ctx context.Context) error {
	db, err := timingdb.Load(ctx, s.reader, s.base)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.db = db
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"tables":  db.NTables(),
		"samples": db.NSamples(),
	}).Debug("Timing database loaded")

	return nil
}

// database returns the currently served database, or nil.
func (s *server) database() (*timingdb.Database, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db, s.loadedAt
}
