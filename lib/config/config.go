// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/xdebugbus/lib/logging"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "XDEBUGBUS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for a developer workstation running the bridge
	// next to its web server.
	Development Environment = "development"
	// Staging is for shared test hosts.
	Staging Environment = "staging"
	// Production is for hosts where the bridge runs unattended.
	Production Environment = "production"
)

// Config is the master configuration for xdebugbus.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// DBGP configures the listener that debugger engines connect to.
	DBGP DBGPConfig `yaml:"dbgp"`

	// DBGPProxy configures registration with an upstream DBGp proxy.
	DBGPProxy ProxyConfig `yaml:"dbgp_proxy"`

	// DBGPRepeat configures the relay that mirrors each debugger
	// connection to an IDE.
	DBGPRepeat RepeatConfig `yaml:"dbgp_repeat"`

	// WAMP configures the message bus session.
	WAMP WAMPConfig `yaml:"wamp"`

	// LogLevels lists the level names written to the console. Any
	// combination is allowed; an empty list silences the console.
	LogLevels []string `yaml:"log_levels"`

	// LogFile, when set, receives every record as JSON lines.
	LogFile string `yaml:"log_file"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	DBGP       *DBGPConfig   `yaml:"dbgp,omitempty"`
	DBGPProxy  *ProxyConfig  `yaml:"dbgp_proxy,omitempty"`
	DBGPRepeat *RepeatConfig `yaml:"dbgp_repeat,omitempty"`
	WAMP       *WAMPConfig   `yaml:"wamp,omitempty"`
	LogLevels  []string      `yaml:"log_levels,omitempty"`
}

// DBGPConfig configures the debugger listener.
type DBGPConfig struct {
	// Host is the interface to listen on.
	// Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is the listen port. When registering with a DBGp proxy this
	// must differ from the proxy's own IDE port.
	// Default: 9000
	Port int `yaml:"port"`

	// IDEKey is sent with proxyinit.
	// Default: XdebugWamp
	IDEKey string `yaml:"ide_key"`

	// TransactionPrefix is prepended to every transaction id. Empty
	// means a random per-connection prefix.
	TransactionPrefix string `yaml:"transaction_prefix"`
}

// Address returns host:port.
func (d DBGPConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ProxyConfig configures DBGp proxy registration.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`

	// URI is the proxy's host:port.
	// Default: 127.0.0.1:9001
	URI string `yaml:"uri"`
}

// RepeatConfig configures the IDE relay.
type RepeatConfig struct {
	Enabled bool `yaml:"enabled"`

	// URI is the IDE's host:port.
	// Default: 127.0.0.1:9002
	URI string `yaml:"uri"`

	// ConnectTimeout bounds the relay dial.
	// Default: 1s
	ConnectTimeout string `yaml:"connect_timeout"`
}

// Timeout returns ConnectTimeout parsed. Validate rejects unparseable
// values, so an invalid value only reaches here unvalidated and yields 0.
func (r RepeatConfig) Timeout() time.Duration {
	timeout, _ := time.ParseDuration(r.ConnectTimeout)
	return timeout
}

// WAMPConfig configures the message bus.
type WAMPConfig struct {
	// URL is the router's websocket endpoint.
	// Default: ws://127.0.0.1:9090/
	URL string `yaml:"url"`

	// Realm is joined with HELLO.
	// Default: debug
	Realm string `yaml:"realm"`

	// Topic receives published debugger events.
	// Default: bdk.debug.xdebug
	Topic string `yaml:"topic"`

	// ControlTopic carries inbound commands. Empty means Topic.
	ControlTopic string `yaml:"control_topic"`

	// Serialization is "json" or "cbor".
	// Default: json
	Serialization string `yaml:"serialization"`

	// ReconnectMaxInterval caps the reconnect backoff.
	// Default: 30s
	ReconnectMaxInterval string `yaml:"reconnect_max_interval"`
}

// CommandTopic returns the topic inbound commands arrive on.
func (w WAMPConfig) CommandTopic() string {
	if w.ControlTopic != "" {
		return w.ControlTopic
	}
	return w.Topic
}

// MaxInterval returns ReconnectMaxInterval parsed, or 0 if unset.
func (w WAMPConfig) MaxInterval() time.Duration {
	interval, _ := time.ParseDuration(w.ReconnectMaxInterval)
	return interval
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. A bridge started without
// a config file listens on 127.0.0.1:9000 and publishes to a local
// router, with proxy registration and relaying disabled.
func Default() *Config {
	return &Config{
		Environment: Development,
		DBGP: DBGPConfig{
			Host:   "127.0.0.1",
			Port:   9000,
			IDEKey: "XdebugWamp",
		},
		DBGPProxy: ProxyConfig{
			URI: "127.0.0.1:9001",
		},
		DBGPRepeat: RepeatConfig{
			URI:            "127.0.0.1:9002",
			ConnectTimeout: "1s",
		},
		WAMP: WAMPConfig{
			URL:                  "ws://127.0.0.1:9090/",
			Realm:                "debug",
			Topic:                "bdk.debug.xdebug",
			Serialization:        "json",
			ReconnectMaxInterval: "30s",
		},
		LogLevels: logging.LevelNames(),
	}
}

// Load loads configuration from the file named by XDEBUGBUS_CONFIG, or
// returns the defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path over the
// defaults. Unknown keys are errors. ${VAR} and ${VAR:-default} are
// expanded in address fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile decodes a single configuration file, merging into the
// current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no debug chatter on the console.
		if overrides == nil {
			overrides = &ConfigOverrides{
				LogLevels: []string{"emergency", "alert", "critical", "error", "warning", "notice"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.DBGP != nil {
		if overrides.DBGP.Host != "" {
			c.DBGP.Host = overrides.DBGP.Host
		}
		if overrides.DBGP.Port != 0 {
			c.DBGP.Port = overrides.DBGP.Port
		}
		if overrides.DBGP.IDEKey != "" {
			c.DBGP.IDEKey = overrides.DBGP.IDEKey
		}
		if overrides.DBGP.TransactionPrefix != "" {
			c.DBGP.TransactionPrefix = overrides.DBGP.TransactionPrefix
		}
	}

	if overrides.DBGPProxy != nil {
		// Enabled is a bool, so we always apply it from overrides.
		c.DBGPProxy.Enabled = overrides.DBGPProxy.Enabled
		if overrides.DBGPProxy.URI != "" {
			c.DBGPProxy.URI = overrides.DBGPProxy.URI
		}
	}

	if overrides.DBGPRepeat != nil {
		c.DBGPRepeat.Enabled = overrides.DBGPRepeat.Enabled
		if overrides.DBGPRepeat.URI != "" {
			c.DBGPRepeat.URI = overrides.DBGPRepeat.URI
		}
		if overrides.DBGPRepeat.ConnectTimeout != "" {
			c.DBGPRepeat.ConnectTimeout = overrides.DBGPRepeat.ConnectTimeout
		}
	}

	if overrides.WAMP != nil {
		if overrides.WAMP.URL != "" {
			c.WAMP.URL = overrides.WAMP.URL
		}
		if overrides.WAMP.Realm != "" {
			c.WAMP.Realm = overrides.WAMP.Realm
		}
		if overrides.WAMP.Topic != "" {
			c.WAMP.Topic = overrides.WAMP.Topic
		}
		if overrides.WAMP.ControlTopic != "" {
			c.WAMP.ControlTopic = overrides.WAMP.ControlTopic
		}
		if overrides.WAMP.Serialization != "" {
			c.WAMP.Serialization = overrides.WAMP.Serialization
		}
		if overrides.WAMP.ReconnectMaxInterval != "" {
			c.WAMP.ReconnectMaxInterval = overrides.WAMP.ReconnectMaxInterval
		}
	}

	if overrides.LogLevels != nil {
		c.LogLevels = overrides.LogLevels
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// address and path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.DBGP.Host = expandVars(c.DBGP.Host, vars)
	c.DBGPProxy.URI = expandVars(c.DBGPProxy.URI, vars)
	c.DBGPRepeat.URI = expandVars(c.DBGPRepeat.URI, vars)
	c.WAMP.URL = expandVars(c.WAMP.URL, vars)
	c.LogFile = expandVars(c.LogFile, vars)
	c.Metrics.Listen = expandVars(c.Metrics.Listen, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.DBGP.Host == "" {
		errs = append(errs, fmt.Errorf("dbgp.host is required"))
	}
	if c.DBGP.Port < 1 || c.DBGP.Port > 65535 {
		errs = append(errs, fmt.Errorf("dbgp.port must be between 1 and 65535, got %d", c.DBGP.Port))
	}
	if c.DBGP.IDEKey == "" {
		errs = append(errs, fmt.Errorf("dbgp.ide_key is required"))
	}

	if c.DBGPProxy.Enabled {
		if err := validateHostPort(c.DBGPProxy.URI); err != nil {
			errs = append(errs, fmt.Errorf("dbgp_proxy.uri: %w", err))
		}
	}

	if c.DBGPRepeat.Enabled {
		if err := validateHostPort(c.DBGPRepeat.URI); err != nil {
			errs = append(errs, fmt.Errorf("dbgp_repeat.uri: %w", err))
		}
	}
	if err := validatePositiveDuration(c.DBGPRepeat.ConnectTimeout); err != nil {
		errs = append(errs, fmt.Errorf("dbgp_repeat.connect_timeout: %w", err))
	}

	if parsed, err := url.Parse(c.WAMP.URL); err != nil {
		errs = append(errs, fmt.Errorf("wamp.url: %w", err))
	} else if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("wamp.url must use ws or wss, got %q", c.WAMP.URL))
	}
	if c.WAMP.Realm == "" {
		errs = append(errs, fmt.Errorf("wamp.realm is required"))
	}
	if c.WAMP.Topic == "" {
		errs = append(errs, fmt.Errorf("wamp.topic is required"))
	}
	if c.WAMP.Serialization != "json" && c.WAMP.Serialization != "cbor" {
		errs = append(errs, fmt.Errorf("wamp.serialization must be json or cbor, got %q", c.WAMP.Serialization))
	}
	if err := validatePositiveDuration(c.WAMP.ReconnectMaxInterval); err != nil {
		errs = append(errs, fmt.Errorf("wamp.reconnect_max_interval: %w", err))
	}

	if _, err := logging.ParseLevels(c.LogLevels); err != nil {
		errs = append(errs, fmt.Errorf("log_levels: %w", err))
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateHostPort(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("%q has no host", address)
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 1 || number > 65535 {
		return fmt.Errorf("%q has an invalid port", address)
	}
	return nil
}

func validatePositiveDuration(value string) error {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("must be positive, got %s", value)
	}
	return nil
}
