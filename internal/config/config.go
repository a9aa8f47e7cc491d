// Package config loads the server's text configuration format:
// "key = value" lines, "#" comments, "[section]" lines ignored.
// This is the external collaborator spec.md section 1 calls out as out of
// scope for the connection engine; it still has to exist for the repo to
// run, so it is implemented here to spec.md section 6 exactly.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/zeushttp/zeushttp/internal/zlog"
)

// Config is the immutable, loaded server configuration.
type Config struct {
	BindHost    string
	BindPort    int
	NumWorkers  int
	TLSCertPath string
	TLSKeyPath  string
	LogFile     string
	RunAsUser   string
}

// Default returns the documented defaults from spec.md section 6.
func Default() Config {
	return Config{
		BindHost:    "127.0.0.1",
		BindPort:    8443,
		NumWorkers:  4,
		TLSCertPath: "certs/server.crt",
		TLSKeyPath:  "certs/server.key",
		LogFile:     "stderr",
		RunAsUser:   "zeushttp",
	}
}

// Load reads and parses path, starting from Default() and overriding with
// whatever directives are present. Unknown keys are logged and ignored.
func Load(path string, log *zlog.Logger) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := parseInto(&cfg, f, log); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseInto(cfg *Config, f *os.File, log *zlog.Logger) error {
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			if log != nil {
				log.Warn("config: ignoring malformed line %d: %q", lineNo, line)
			}
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "bind_host":
			cfg.BindHost = value
		case "bind_port":
			p, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("config: line %d: bind_port: %w", lineNo, err)
			}
			cfg.BindPort = p
		case "num_workers":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("config: line %d: num_workers: %w", lineNo, err)
			}
			cfg.NumWorkers = n
		case "tls_cert_path":
			cfg.TLSCertPath = value
		case "tls_key_path":
			cfg.TLSKeyPath = value
		case "log_file":
			cfg.LogFile = value
		case "run_as_user":
			cfg.RunAsUser = value
		default:
			if log != nil {
				log.Warn("config: unknown key %q at line %d, ignored", key, lineNo)
			}
		}
	}
	return scanner.Err()
}

// Watcher triggers onChange whenever path is rewritten on disk (e.g. a
// deploy tool rotates the config/certificates without sending SIGHUP).
// Grounded on nabbar-golib's fsnotify-based file watching.
type Watcher struct {
	w *fsnotify.Watcher
}

// WatchFile starts watching path and invokes onChange on every write,
// create or rename event for it. Duplicate events fsnotify emits for a
// single atomic rewrite (temp-file-then-rename) each trigger onChange.
func WatchFile(path string, log *zlog.Logger, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: fsnotify: %w", err)
	}
	dir := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		dir = path[:idx]
	} else {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(ev.Name, path) && ev.Name != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if log != nil {
						log.Info("config: change detected on %s, reloading", path)
					}
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.Warn("config: watch error: %v", err)
				}
			}
		}
	}()

	return &Watcher{w: w}, nil
}

func (w *Watcher) Close() error { return w.w.Close() }
