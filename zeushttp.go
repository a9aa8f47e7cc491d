// Package zeushttp is the public entry point for embedding the
// zeushttp TLS/HTTP server: a prefork, epoll-driven HTTP/1.1 and HTTP/2
// server (spec.md section 1). cmd/zeushttpd builds on the internal
// packages directly rather than on this package; library consumers that
// want to register routes and drive the server from their own process use
// this package.
package zeushttp

import (
	"crypto/tls"
	"fmt"

	"github.com/zeushttp/zeushttp/internal/config"
	"github.com/zeushttp/zeushttp/internal/netutil"
	"github.com/zeushttp/zeushttp/internal/router"
	"github.com/zeushttp/zeushttp/internal/supervisor"
	"github.com/zeushttp/zeushttp/internal/worker"
	"github.com/zeushttp/zeushttp/internal/zlog"
	"github.com/zeushttp/zeushttp/pkg/tlsconfig"
)

// Version is the current version of the zeushttp server.
const Version = "1.0.0"

// GetVersion returns the current version of the server.
func GetVersion() string {
	return Version
}

// Re-export key types for easier usage, the same convenience-alias
// convention the client library this server's cmd/ scaffolding was built
// from used for its own Options/Response/Metrics types.
type (
	// Config controls bind address, worker count, TLS material, and
	// logging destination.
	Config = config.Config

	// Handler produces a response for a matched request.
	Handler = router.Handler
)

// DefaultConfig returns the documented defaults from spec.md section 6.
func DefaultConfig() Config {
	return config.Default()
}

// Server is the embeddable, single-process form of zeushttp: one worker
// loop running in the calling process rather than under the
// supervisor/re-exec prefork model cmd/zeushttpd uses for production
// deployment. It is the shape a test harness or an application that wants
// zeushttp without a separate supervisor process would use.
type Server struct {
	cfg    Config
	router *router.Router
	log    *zlog.Logger
}

// New returns a Server configured from cfg with an empty route table.
func New(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		router: router.New(),
		log:    zlog.New("embedded"),
	}
}

// Handle registers a route. Routes are matched in registration order; the
// first match wins, and an unmatched request receives a 404 (spec.md
// section 4.4).
func (s *Server) Handle(method, path string, h Handler) error {
	return s.router.Register(method, path, h)
}

// ListenAndServe binds the configured address, builds a TLS config from
// the configured certificate/key pair, and runs a single worker's reactor
// loop in the calling goroutine. It returns only on a listen, TLS or worker
// setup error or a reactor failure; nothing on Server stops the loop from
// another goroutine. Graceful SIGQUIT/SIGTERM shutdown is handled by
// cmd/zeushttpd's supervisor.
func (s *Server) ListenAndServe() error {
	fd, err := netutil.Listen(s.cfg.BindHost, s.cfg.BindPort)
	if err != nil {
		return fmt.Errorf("zeushttp: listen: %w", err)
	}

	tlsConfig, err := tlsConfigFromFiles(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
	if err != nil {
		return fmt.Errorf("zeushttp: tls config: %w", err)
	}

	w, err := worker.New(fd, tlsConfig, s.router, s.log)
	if err != nil {
		return fmt.Errorf("zeushttp: worker init: %w", err)
	}
	return w.Run()
}

// ListenAndServePrefork runs the full supervisor/worker prefork model
// spec.md section 4.10 describes, spawning s.cfg.NumWorkers processes via
// self re-exec and blocking until SIGQUIT/SIGTERM. Route handlers
// registered on s are not carried to the re-exec'd children; cmd/zeushttpd
// registers its own routes directly, since handlers cannot cross a
// process boundary. Embedders wanting custom routes under the prefork
// model should build their own cmd/ binary the way cmd/zeushttpd does,
// using internal/supervisor and internal/worker directly.
func (s *Server) ListenAndServePrefork() error {
	sup, err := supervisor.New(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("zeushttp: supervisor startup: %w", err)
	}
	defer sup.Close()
	return sup.Run()
}

func tlsConfigFromFiles(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	tlsconfig.ApplyVersionProfile(cfg, tlsconfig.ProfileSecure)
	tlsconfig.ApplyCipherSuites(cfg, cfg.MinVersion)
	return cfg, nil
}
