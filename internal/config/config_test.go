package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Enabled {
		t.Error("Enabled should default to false")
	}
	if cfg.BreakOnStart {
		t.Error("BreakOnStart should default to false")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Defaults() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
enabled = true
host = "0.0.0.0"
port = 9333
break_on_start = true
log_level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Enabled {
		t.Error("Enabled not loaded")
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 9333 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if !cfg.BreakOnStart {
		t.Error("BreakOnStart not loaded")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `port = 9400`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want default", cfg.Host)
	}
	if cfg.Port != 9400 {
		t.Errorf("Port = %d", cfg.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, `port = "not a number`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed file")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	path := writeConfig(t, `port = 70000`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for out-of-range port")
	}
}

func TestAddr(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 9229}
	if cfg.Addr() != "localhost:9229" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "luascope.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
