// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "xdebugbus.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if got := cfg.DBGP.Address(); got != "127.0.0.1:9000" {
		t.Errorf("expected dbgp address 127.0.0.1:9000, got %s", got)
	}
	if cfg.DBGP.IDEKey != "XdebugWamp" {
		t.Errorf("expected ide_key=XdebugWamp, got %s", cfg.DBGP.IDEKey)
	}
	if cfg.DBGPProxy.Enabled || cfg.DBGPRepeat.Enabled {
		t.Error("expected proxy registration and relay to be disabled")
	}
	if cfg.DBGPRepeat.Timeout() != time.Second {
		t.Errorf("expected 1s relay timeout, got %s", cfg.DBGPRepeat.Timeout())
	}
	if cfg.WAMP.Realm != "debug" || cfg.WAMP.Topic != "bdk.debug.xdebug" {
		t.Errorf("unexpected wamp defaults: %+v", cfg.WAMP)
	}
	if cfg.WAMP.CommandTopic() != cfg.WAMP.Topic {
		t.Errorf("expected command topic to default to %s, got %s", cfg.WAMP.Topic, cfg.WAMP.CommandTopic())
	}
	if len(cfg.LogLevels) != 8 {
		t.Errorf("expected all eight log levels, got %v", cfg.LogLevels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_WithoutVariableUsesDefaults(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() without %s differs from Default() (-want +got):\n%s", EnvironmentVariable, diff)
	}
}

func TestLoad_WithVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
dbgp:
  port: 9010
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.DBGP.Port != 9010 {
		t.Errorf("expected port=9010, got %d", cfg.DBGP.Port)
	}
	if cfg.DBGP.Host != "127.0.0.1" {
		t.Errorf("expected default host to survive, got %s", cfg.DBGP.Host)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
dbgp:
  host: 0.0.0.0
  ide_key: PHPSTORM
  transaction_prefix: "bus."

dbgp_proxy:
  enabled: true
  uri: proxy.internal:9001

dbgp_repeat:
  enabled: true
  uri: 127.0.0.1:9003
  connect_timeout: 250ms

wamp:
  url: wss://router.internal/ws
  realm: php
  topic: debug.events
  control_topic: debug.commands
  serialization: cbor
  reconnect_max_interval: 5s

log_levels: [notice, error]
log_file: /tmp/xdebugbus.jsonl

metrics:
  listen: 127.0.0.1:9091
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := Default()
	want.DBGP = DBGPConfig{Host: "0.0.0.0", Port: 9000, IDEKey: "PHPSTORM", TransactionPrefix: "bus."}
	want.DBGPProxy = ProxyConfig{Enabled: true, URI: "proxy.internal:9001"}
	want.DBGPRepeat = RepeatConfig{Enabled: true, URI: "127.0.0.1:9003", ConnectTimeout: "250ms"}
	want.WAMP = WAMPConfig{
		URL:                  "wss://router.internal/ws",
		Realm:                "php",
		Topic:                "debug.events",
		ControlTopic:         "debug.commands",
		Serialization:        "cbor",
		ReconnectMaxInterval: "5s",
	}
	want.LogLevels = []string{"notice", "error"}
	want.LogFile = "/tmp/xdebugbus.jsonl"
	want.Metrics.Listen = "127.0.0.1:9091"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadFile mismatch (-want +got):\n%s", diff)
	}
	if cfg.WAMP.CommandTopic() != "debug.commands" {
		t.Errorf("expected command topic debug.commands, got %s", cfg.WAMP.CommandTopic())
	}
	if cfg.WAMP.MaxInterval() != 5*time.Second {
		t.Errorf("expected 5s reconnect interval, got %s", cfg.WAMP.MaxInterval())
	}
}

func TestLoadFile_EmptyFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile failed on empty file: %v", err)
	}
	if cfg.DBGP.Port != 9000 {
		t.Errorf("expected defaults for empty file, got port %d", cfg.DBGP.Port)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
wamp:
  relm: typo
`))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "relm") {
		t.Errorf("expected error to name the unknown key, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

dbgp:
  port: 9000

dbgp_repeat:
  enabled: true

production:
  dbgp:
    port: 9100
  dbgp_repeat:
    enabled: false
  wamp:
    realm: prod
  log_levels: [error]
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.DBGP.Port != 9100 {
		t.Errorf("expected port=9100 from production override, got %d", cfg.DBGP.Port)
	}
	if cfg.DBGPRepeat.Enabled {
		t.Error("expected relay disabled by production override")
	}
	if cfg.WAMP.Realm != "prod" {
		t.Errorf("expected realm=prod, got %s", cfg.WAMP.Realm)
	}
	if diff := cmp.Diff([]string{"error"}, cfg.LogLevels); diff != "" {
		t.Errorf("log levels (-want +got):\n%s", diff)
	}
}

func TestProductionDefaultsDropVerboseLevels(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	for _, level := range cfg.LogLevels {
		if level == "info" || level == "debug" {
			t.Errorf("expected production defaults to drop %s", level)
		}
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("XDEBUGBUS_TEST_ROUTER", "router.example")

	cfg, err := LoadFile(writeConfig(t, `
wamp:
  url: ws://${XDEBUGBUS_TEST_ROUTER}:9090/
dbgp_repeat:
  uri: ${XDEBUGBUS_TEST_IDE:-127.0.0.1}:9002
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.WAMP.URL != "ws://router.example:9090/" {
		t.Errorf("expected expanded url, got %s", cfg.WAMP.URL)
	}
	if cfg.DBGPRepeat.URI != "127.0.0.1:9002" {
		t.Errorf("expected default expansion, got %s", cfg.DBGPRepeat.URI)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/xdebugbus.jsonl",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/xdebugbus.jsonl",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}:${B}",
			vars:     map[string]string{"A": "host", "B": "9000"},
			expected: "host:9000",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "port out of range",
			modify: func(c *Config) {
				c.DBGP.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "empty ide key",
			modify: func(c *Config) {
				c.DBGP.IDEKey = ""
			},
			wantErr: true,
		},
		{
			name: "disabled proxy uri is not checked",
			modify: func(c *Config) {
				c.DBGPProxy.URI = "not an address"
			},
			wantErr: false,
		},
		{
			name: "enabled proxy without port",
			modify: func(c *Config) {
				c.DBGPProxy.Enabled = true
				c.DBGPProxy.URI = "127.0.0.1"
			},
			wantErr: true,
		},
		{
			name: "enabled repeat with bad port",
			modify: func(c *Config) {
				c.DBGPRepeat.Enabled = true
				c.DBGPRepeat.URI = "127.0.0.1:http"
			},
			wantErr: true,
		},
		{
			name: "zero connect timeout",
			modify: func(c *Config) {
				c.DBGPRepeat.ConnectTimeout = "0s"
			},
			wantErr: true,
		},
		{
			name: "http wamp url",
			modify: func(c *Config) {
				c.WAMP.URL = "http://127.0.0.1:9090/"
			},
			wantErr: true,
		},
		{
			name: "unknown serialization",
			modify: func(c *Config) {
				c.WAMP.Serialization = "msgpack"
			},
			wantErr: true,
		},
		{
			name: "unknown log level",
			modify: func(c *Config) {
				c.LogLevels = []string{"info", "chatty"}
			},
			wantErr: true,
		},
		{
			name: "empty log levels",
			modify: func(c *Config) {
				c.LogLevels = nil
			},
			wantErr: false,
		},
		{
			name: "bad metrics listen",
			modify: func(c *Config) {
				c.Metrics.Listen = "9091"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
