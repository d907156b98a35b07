// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations that need a live session
// while the client is between sessions.
var ErrNotConnected = errors.New("messaging: not connected")

// Error is a WAMP ERROR or ABORT reply from the router. Callers can use
// errors.As to extract it:
//
//	var wampErr *messaging.Error
//	if errors.As(err, &wampErr) {
//	    if wampErr.URI == messaging.ErrURINoSuchRealm { ... }
//	}
type Error struct {
	// URI is the error reason, e.g. "wamp.error.not_authorized".
	URI string
	// Request is the code of the message that failed (SUBSCRIBE,
	// PUBLISH). Zero for ABORT.
	Request int
	// Details is the router's detail dictionary, often carrying a
	// "message" entry.
	Details map[string]any
}

func (e *Error) Error() string {
	if message, ok := e.Details["message"].(string); ok && message != "" {
		return fmt.Sprintf("wamp: %s: %s", e.URI, message)
	}
	return "wamp: " + e.URI
}

// Standard WAMP error reasons.
const (
	ErrURINoSuchRealm       = "wamp.error.no_such_realm"
	ErrURINotAuthorized     = "wamp.error.not_authorized"
	ErrURIInvalidURI        = "wamp.error.invalid_uri"
	ErrURIProtocolViolation = "wamp.error.protocol_violation"
	ErrURIGoodbyeAndOut     = "wamp.close.goodbye_and_out"
	ErrURICloseRealm        = "wamp.close.close_realm"
	ErrURISystemShutdown    = "wamp.close.system_shutdown"
)

// IsError checks whether err is an *Error with the given reason URI.
func IsError(err error, uri string) bool {
	var wampErr *Error
	if errors.As(err, &wampErr) {
		return wampErr.URI == uri
	}
	return false
}
