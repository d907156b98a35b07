// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/bureau-foundation/xdebugbus/dbgp"
)

// ErrUnknownApp is returned for a command addressed to an app id with
// no live debugger connection.
var ErrUnknownApp = errors.New("bridge: no debugger connection for app id")

// ErrMalformedCommand is returned by ParseCommand.
var ErrMalformedCommand = errors.New("bridge: malformed command")

// Registry maps engine app ids to live connections. An entry exists
// from the connection's init frame until it closes.
type Registry struct {
	mu   sync.Mutex
	apps map[string]*dbgp.Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*dbgp.Conn)}
}

// Register binds appID to conn, replacing any previous binding.
func (r *Registry) Register(appID string, conn *dbgp.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[appID] = conn
}

// Unregister removes appID if it is still bound to conn. A newer
// connection that reused the id keeps its entry.
func (r *Registry) Unregister(appID string, conn *dbgp.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.apps[appID] == conn {
		delete(r.apps, appID)
	}
}

// Lookup returns the connection bound to appID.
func (r *Registry) Lookup(appID string) (*dbgp.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.apps[appID]
	return conn, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// Send routes command to its connection.
func (r *Registry) Send(command Command) error {
	conn, ok := r.Lookup(command.AppID)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownApp, command.AppID)
	}
	_, err := conn.Send(command.Name, command.Args, command.Data, nil)
	return err
}

// Command is one inbound request to forward to a debugger engine.
type Command struct {
	AppID string
	Name  string
	Args  dbgp.Args
	Data  []byte
}

// ParseCommand decodes the positional arguments of a control event:
//
//	[appId, command, params, data]
//
// Missing trailing elements take their defaults (no params, no data).
// params is a mapping; its keys are sent in sorted order since the bus
// encodings do not preserve mapping order. Scalars are sent in their
// decimal or 0/1 form.
func ParseCommand(args []any) (Command, error) {
	padded := make([]any, 4)
	copy(padded, args)

	appID, ok := scalarText(padded[0])
	if !ok || appID == "" {
		return Command{}, fmt.Errorf("%w: app id %v", ErrMalformedCommand, padded[0])
	}
	name, ok := padded[1].(string)
	if !ok || name == "" {
		return Command{}, fmt.Errorf("%w: command name %v", ErrMalformedCommand, padded[1])
	}
	command := Command{AppID: appID, Name: name}

	switch params := padded[2].(type) {
	case nil:
	case []any:
		// An empty mapping serialized by a language without a distinct
		// empty-map form.
		if len(params) > 0 {
			return Command{}, fmt.Errorf("%w: params must be a mapping", ErrMalformedCommand)
		}
	case map[string]any:
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			value, ok := scalarText(params[key])
			if !ok {
				return Command{}, fmt.Errorf("%w: param %s is not a scalar", ErrMalformedCommand, key)
			}
			command.Args = append(command.Args, dbgp.Arg{Key: key, Value: value})
		}
	default:
		return Command{}, fmt.Errorf("%w: params must be a mapping", ErrMalformedCommand)
	}

	switch data := padded[3].(type) {
	case nil:
	case string:
		command.Data = []byte(data)
	case []byte:
		command.Data = data
	default:
		return Command{}, fmt.Errorf("%w: data must be a string", ErrMalformedCommand)
	}
	return command, nil
}

// scalarText renders a decoded bus scalar as a command argument.
func scalarText(value any) (string, bool) {
	switch value := value.(type) {
	case nil:
		return "", true
	case string:
		return value, true
	case bool:
		return dbgp.Bool(value), true
	case json.Number:
		return value.String(), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	case uint64:
		return strconv.FormatUint(value, 10), true
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
			return strconv.FormatInt(int64(value), 10), true
		}
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return "", false
	}
}
