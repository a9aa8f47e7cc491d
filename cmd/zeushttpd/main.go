// Command zeushttpd is the single binary for both the supervisor and
// worker roles (SPEC_FULL.md section 6). Invoked normally it runs the
// supervisor; invoked with -worker-slot=N (always by the supervisor's own
// re-exec, never by a user) it runs one worker process instead.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	"github.com/zeushttp/zeushttp/internal/config"
	"github.com/zeushttp/zeushttp/internal/router"
	"github.com/zeushttp/zeushttp/internal/supervisor"
	"github.com/zeushttp/zeushttp/internal/worker"
	"github.com/zeushttp/zeushttp/internal/zlog"
	"github.com/zeushttp/zeushttp/pkg/tlsconfig"
)

// listenExtraFileFD is the descriptor number a worker finds its inherited
// listening socket at: fd 0-2 are stdin/stdout/stderr, and the supervisor's
// ExtraFiles places the listening socket immediately after, at fd 3.
const listenExtraFileFD = 3

func main() {
	configPath := flag.String("config", "zeushttp.conf", "path to the configuration file")
	workerSlot := flag.Int("worker-slot", -1, "internal: worker slot index, set only by the supervisor's re-exec")
	flag.Parse()

	role := "supervisor"
	if *workerSlot >= 0 {
		role = "worker"
	}
	log := zlog.New(role)

	cfg, err := config.Load(*configPath, log)
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}
	if err := zlog.SetOutputFile(cfg.LogFile); err != nil {
		log.Error("log_file: %v", err)
		os.Exit(1)
	}

	if *workerSlot >= 0 {
		runWorker(cfg, log, *workerSlot)
		return
	}
	runSupervisor(cfg, log)
}

func runSupervisor(cfg config.Config, log *zlog.Logger) {
	sup, err := supervisor.New(cfg, log)
	if err != nil {
		log.Error("startup failed: %v", err)
		os.Exit(1)
	}
	defer sup.Close()

	if err := sup.Run(); err != nil {
		log.Error("supervisor exited with error: %v", err)
		os.Exit(1)
	}
}

func runWorker(cfg config.Config, log *zlog.Logger, slot int) {
	log = log.With("slot", slot)

	tlsConfig, err := loadTLSConfig(cfg)
	if err != nil {
		log.Error("tls config: %v", err)
		os.Exit(1)
	}

	rt := router.New()
	if err := registerRoutes(rt); err != nil {
		log.Error("route registration: %v", err)
		os.Exit(1)
	}

	w, err := worker.New(listenExtraFileFD, tlsConfig, rt, log)
	if err != nil {
		log.Error("worker init: %v", err)
		os.Exit(1)
	}

	if err := w.Run(); err != nil {
		log.Error("worker exited with error: %v", err)
		os.Exit(1)
	}
}

// loadTLSConfig builds the server's tls.Config from the paths in cfg,
// selecting ALPN protocols "h2" then "http/1.1" in preference order per
// spec.md section 4.2. A nil result (never returned here) would select
// plaintext-only operation; this server is always TLS-terminating.
func loadTLSConfig(cfg config.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	tc := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
	}
	tlsconfig.ApplyVersionProfile(tc, tlsconfig.ProfileSecure)
	tlsconfig.ApplyCipherSuites(tc, tc.MinVersion)
	return tc, nil
}

// registerRoutes installs the handlers this server ships with. A real
// deployment would extend this with application-specific routes through
// the top-level zeushttp package; this binary ships a minimal health
// route pair against the §4.7 router so the binary is runnable standalone.
func registerRoutes(rt *router.Router) error {
	if err := rt.Register("GET", "/", func(method, path string) (int, []byte) {
		return 200, []byte("zeushttp\n")
	}); err != nil {
		return err
	}
	return rt.Register("GET", "/healthz", func(method, path string) (int, []byte) {
		return 200, []byte("ok\n")
	})
}
