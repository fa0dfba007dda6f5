package server

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/protomock/pkg/admin"
	"github.com/getmockd/protomock/pkg/config"
	"github.com/getmockd/protomock/pkg/envopts"
	"github.com/getmockd/protomock/pkg/logging"
	"github.com/getmockd/protomock/pkg/stub"
	"github.com/getmockd/protomock/pkg/tls"
)

// State is the lifecycle state of a Server.
type State int

// Lifecycle states.
const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server is the mock server façade.
type Server struct {
	opts    *config.ServerOptions
	log     *slog.Logger
	baseLog *slog.Logger
	store   *stub.Store
	journal *stub.Journal
	handler http.Handler

	tlsConfig *cryptotls.Config
	tlsErr    error

	mu        sync.Mutex
	state     State
	httpPort  int
	httpsPort int
	servers   []*http.Server
	group     *errgroup.Group
	watcher   *config.Watcher

	mappingsMu sync.Mutex
	fileIDs    map[string]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger. Without one the server logs at
// info level to stderr, or debug when opts.Verbose is set.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.baseLog = log
	}
}

// WithStore serves stubs from store instead of a private one.
func WithStore(store *stub.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a Server. A nil opts uses config.DefaultServerOptions.
func New(opts *config.ServerOptions, options ...Option) *Server {
	if opts == nil {
		opts = config.DefaultServerOptions()
	}
	o := *opts

	s := &Server{
		opts:    &o,
		state:   StateNotStarted,
		fileIDs: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.baseLog == nil {
		cfg := logging.DefaultConfig()
		if o.Verbose {
			cfg.Level = logging.LevelDebug
		}
		s.baseLog = logging.New(cfg)
	}
	s.log = logging.Component(s.baseLog, "server")
	if s.store == nil {
		s.store = stub.NewStore()
	}
	if o.HTTPSEnabled() {
		// One certificate per Server so clients can trust it across restarts.
		s.tlsConfig, s.tlsErr = tls.ServerConfig()
	}

	handlerOpts := []stub.HandlerOption{
		stub.WithGzipDisabled(o.DisableGzip),
		stub.WithLogger(s.baseLog),
	}
	adminOpts := []admin.Option{
		admin.WithLogger(s.baseLog),
		admin.WithMappingLoader(s.resetMappings),
	}
	if !o.NoRequestJournal {
		s.journal = stub.NewJournal(o.MaxRequestJournalEntries)
		handlerOpts = append(handlerOpts, stub.WithJournal(s.journal))
		adminOpts = append(adminOpts, admin.WithJournal(s.journal))
	}

	s.handler = route(admin.New(s.store, adminOpts...), stub.NewHandler(s.store, handlerOpts...))
	return s
}

// FromEnvironment builds a Server from the process environment. Every
// variable prefixed with envopts.DefaultPrefix becomes a server option;
// options the server does not recognize are logged and ignored.
func FromEnvironment(options ...Option) (*Server, error) {
	return fromEnviron(os.Environ(), options...)
}

func fromEnviron(environ []string, options ...Option) (*Server, error) {
	args := envopts.Collect(envopts.ParseEnviron(environ), envopts.DefaultPrefix)
	opts, unknown, err := config.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	s := New(opts, options...)
	if len(unknown) > 0 {
		s.log.Warn("ignoring unrecognized server options", "options", unknown)
	}
	return s, nil
}

// route sends /__admin requests to the admin API and everything else to stubs.
func route(adminAPI, stubs http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == admin.Prefix || strings.HasPrefix(r.URL.Path, admin.Prefix+"/") {
			adminAPI.ServeHTTP(w, r)
			return
		}
		stubs.ServeHTTP(w, r)
	})
}

// Start binds the listeners, loads mappings and begins serving. A bind
// failure returns a *BindError.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrAlreadyRunning
	}
	if err := s.opts.Validate(); err != nil {
		return err
	}

	stubs, err := config.LoadMappings(s.opts.RootDir)
	if err != nil {
		return err
	}
	s.applyMappings(stubs)

	var (
		lc        net.ListenConfig
		listeners []net.Listener
		servers   []*http.Server
	)
	release := func() {
		for _, ln := range listeners {
			_ = ln.Close()
		}
	}

	if s.opts.HTTPEnabled() {
		addr := net.JoinHostPort(s.opts.BindAddress, strconv.Itoa(s.opts.Port))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return &BindError{Scheme: "http", Addr: addr, Err: err}
		}
		listeners = append(listeners, ln)
		servers = append(servers, s.newHTTPServer(nil))
	}

	if s.opts.HTTPSEnabled() {
		if s.tlsErr != nil {
			release()
			return fmt.Errorf("server: tls setup: %w", s.tlsErr)
		}
		addr := net.JoinHostPort(s.opts.BindAddress, strconv.Itoa(s.opts.HTTPSPort))
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			release()
			return &BindError{Scheme: "https", Addr: addr, Err: err}
		}
		listeners = append(listeners, ln)
		servers = append(servers, s.newHTTPServer(s.tlsConfig.Clone()))
	}

	s.httpPort, s.httpsPort = 0, 0
	for i, ln := range listeners {
		port := ln.Addr().(*net.TCPAddr).Port
		if servers[i].TLSConfig != nil {
			s.httpsPort = port
		} else {
			s.httpPort = port
		}
	}

	g := new(errgroup.Group)
	for i, ln := range listeners {
		srv := servers[i]
		g.Go(func() error {
			var err error
			if srv.TLSConfig != nil {
				err = srv.ServeTLS(ln, "", "")
			} else {
				err = srv.Serve(ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("mock server error", "addr", ln.Addr().String(), "error", err)
				return err
			}
			return nil
		})
	}
	s.group = g
	s.servers = servers

	if s.opts.Watch {
		s.watcher = config.NewWatcher(s.opts.RootDir, s.applyMappings, s.baseLog)
		if err := s.watcher.Start(); err != nil {
			s.log.Warn("mapping watch disabled", "error", err)
			s.watcher = nil
		}
	}

	s.state = StateRunning
	s.log.Info("mock server started",
		"http_port", s.httpPort,
		"https_port", s.httpsPort,
		"root_dir", s.opts.RootDir,
		"stubs", s.store.Count(),
	)
	s.log.Debug("mock server options", "options", s.opts.Args())
	return nil
}

func (s *Server) newHTTPServer(tlsConfig *cryptotls.Config) *http.Server {
	return &http.Server{
		Handler:      s.handler,
		TLSConfig:    tlsConfig,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(s.log.Handler(), slog.LevelDebug),
	}
}

// Stop shuts the listeners down and waits for in-flight requests, bounded by
// ctx. Calling Stop on a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil
	}

	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}

	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: shutdown: %w", err))
			_ = srv.Close()
		}
	}
	if err := s.group.Wait(); err != nil {
		errs = append(errs, err)
	}

	s.servers = nil
	s.group = nil
	s.httpPort, s.httpsPort = 0, 0
	s.state = StateStopped
	s.log.Info("mock server stopped")
	return errors.Join(errs...)
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BaseURL returns the URL clients should target. Plain HTTP is preferred;
// the HTTPS URL is returned only when HTTP is disabled.
func (s *Server) BaseURL() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return "", ErrNotRunning
	}

	host := s.opts.BindAddress
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if s.httpPort != 0 {
		return "http://" + net.JoinHostPort(host, strconv.Itoa(s.httpPort)), nil
	}
	return "https://" + net.JoinHostPort(host, strconv.Itoa(s.httpsPort)), nil
}

// HTTPPort returns the bound HTTP port, or 0 when HTTP is not being served.
func (s *Server) HTTPPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpPort
}

// HTTPSPort returns the bound HTTPS port, or 0 when HTTPS is not being served.
func (s *Server) HTTPSPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpsPort
}

// Stubs returns the store the server matches requests against.
func (s *Server) Stubs() *stub.Store {
	return s.store
}

// Journal returns the request journal, or nil when it is disabled.
func (s *Server) Journal() *stub.Journal {
	return s.journal
}

// Handler returns the root handler: stubs plus the admin API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ClientTLSConfig returns a client configuration that trusts the server's
// self-signed certificate, or nil when HTTPS is disabled.
func (s *Server) ClientTLSConfig() *cryptotls.Config {
	if s.tlsConfig == nil {
		return nil
	}
	return tls.ClientConfig(s.tlsConfig)
}

// Options returns a copy of the server options.
func (s *Server) Options() config.ServerOptions {
	return *s.opts
}
