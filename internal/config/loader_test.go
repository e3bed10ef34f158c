package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
projects:
  alpha:
    cwd: /tmp/alpha
    start_cmd: node server.js
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Settings.ProxyPort != 80 {
		t.Errorf("expected default proxy_port 80, got %d", cfg.Settings.ProxyPort)
	}
	if cfg.Settings.PortRange != [2]int{4000, 4999} {
		t.Errorf("expected default port_range, got %v", cfg.Settings.PortRange)
	}
	if !cfg.Settings.DynamicTimeout {
		t.Errorf("expected dynamic_timeout default true")
	}
}

func TestParseCollectsAllErrors(t *testing.T) {
	_, err := Parse([]byte(`
projects:
  Bad-Name:
    cwd: ""
    start_cmd: ""
  good:
    name: wrong-key-mismatch
    cwd: /tmp/x
    start_cmd: echo hi
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	invalid, ok := err.(*ErrConfigInvalid)
	if !ok {
		t.Fatalf("expected *ErrConfigInvalid, got %T", err)
	}
	// Bad-Name: invalid name, empty cwd, empty start_cmd = 3 errors.
	// good: name mismatch = 1 error.
	if len(invalid.Errors) < 4 {
		t.Fatalf("expected all errors collected, got %d: %v", len(invalid.Errors), invalid.Errors)
	}
}

func TestParseProjectNameDefaultsToKey(t *testing.T) {
	cfg, err := Parse([]byte(`
projects:
  alpha:
    cwd: /tmp/alpha
    start_cmd: node server.js
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Projects["alpha"].Name != "alpha" {
		t.Errorf("expected name defaulted to key, got %q", cfg.Projects["alpha"].Name)
	}
}

func TestLoadRoundTripsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
settings:
  proxy_port: 8080
projects:
  alpha:
    cwd: /tmp/alpha
    start_cmd: node server.js
    idle_timeout: 0
    aliases: [a]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Settings.ProxyPort != 8080 {
		t.Errorf("expected proxy_port 8080, got %d", cfg.Settings.ProxyPort)
	}
	p := cfg.Projects["alpha"]
	if p.IdleTimeout == nil || p.IdleTimeout.Duration() != 0 {
		t.Errorf("expected idle_timeout override of 0, got %v", p.IdleTimeout)
	}
	if len(p.Aliases) != 1 || p.Aliases[0] != "a" {
		t.Errorf("expected aliases=[a], got %v", p.Aliases)
	}
}

func TestBuildRoutingTableIncludesAliases(t *testing.T) {
	cfg, err := Parse([]byte(`
projects:
  alpha:
    cwd: /tmp/alpha
    start_cmd: node server.js
    aliases: [a, alpha-alias]
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rt := BuildRoutingTable(cfg)
	if rt["alpha"] != rt["a"] || rt["alpha"] != rt["alpha-alias"] {
		t.Fatalf("expected aliases to route to the same project pointer")
	}
}
