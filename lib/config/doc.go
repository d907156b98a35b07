// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for xdebugbus.
//
// Configuration comes from a single file named by either the
// XDEBUGBUS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). Without either, [Default] applies: listen on
// 127.0.0.1:9000, publish to ws://127.0.0.1:9090/ in realm "debug",
// with proxy registration and relaying disabled. Unknown keys in the
// file are errors.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without an explicit section
// drops info and debug from the console levels.
//
// Variable expansion is performed on address fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. Command-line flags
// are applied by the caller after loading and before [Config.Validate].
//
// Key exports:
//
//   - [Config] -- master struct with DBGP, DBGPProxy, DBGPRepeat, WAMP
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends only on lib/logging, for level name validation.
package config
