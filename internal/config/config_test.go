package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zeushttp.conf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTemp(t, "# empty config\n[section]\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeTemp(t, overrideConfigText())
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindHost != "0.0.0.0" {
		t.Errorf("BindHost = %q, want 0.0.0.0", cfg.BindHost)
	}
	if cfg.BindPort != 9443 {
		t.Errorf("BindPort = %d, want 9443", cfg.BindPort)
	}
	if cfg.NumWorkers != 8 {
		t.Errorf("NumWorkers = %d, want 8", cfg.NumWorkers)
	}
	if cfg.TLSCertPath != "/etc/zeus/server.crt" {
		t.Errorf("TLSCertPath = %q", cfg.TLSCertPath)
	}
}

func overrideConfigText() string {
	return "" +
		"bind_host = 0.0.0.0\n" +
		"bind_port = 9443\n" +
		"num_workers = 8\n" +
		"tls_cert_path = /etc/zeus/server.crt\n" +
		"# a comment\n" +
		"unknown_directive = ignored\n"
}

func TestLoadUnknownKeyIsIgnoredNotFatal(t *testing.T) {
	path := writeTemp(t, "totally_bogus = 1\nbind_port = 1234\n")
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindPort != 1234 {
		t.Errorf("BindPort = %d, want 1234", cfg.BindPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.conf"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
