// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dbgp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// maxFrameLength bounds a single payload. Engines emit source listings
// and deep property dumps in one frame; 64 MB is well past anything
// observed while still catching a desynchronized stream.
const maxFrameLength = 64 * 1024 * 1024

// maxLengthDigits bounds how many bytes may be buffered without finding
// the NUL that terminates a length prefix.
const maxLengthDigits = 20

// ErrBadFrame is wrapped by every framing error. A framing error means
// the byte stream can no longer be trusted and the connection must be
// dropped.
var ErrBadFrame = errors.New("dbgp: malformed frame")

// Splitter reassembles frames from arbitrarily chunked stream reads.
// Partial frames are held across Write calls. The zero value is ready
// to use. A Splitter is not safe for concurrent use.
type Splitter struct {
	buffer     []byte
	length     int
	haveLength bool
}

// Write appends stream bytes to the internal buffer.
func (s *Splitter) Write(p []byte) {
	s.buffer = append(s.buffer, p...)
}

// Buffered returns the number of bytes held but not yet returned.
func (s *Splitter) Buffered() int {
	return len(s.buffer)
}

// Next returns the next complete payload, or ok == false when more
// bytes are needed. The returned slice is owned by the caller.
func (s *Splitter) Next() (payload []byte, ok bool, err error) {
	if !s.haveLength {
		terminator := bytes.IndexByte(s.buffer, 0)
		if terminator < 0 {
			if len(s.buffer) > maxLengthDigits {
				return nil, false, fmt.Errorf("%w: no length terminator in %d bytes", ErrBadFrame, len(s.buffer))
			}
			return nil, false, nil
		}
		length, err := strconv.Atoi(string(s.buffer[:terminator]))
		if err != nil || length < 0 {
			return nil, false, fmt.Errorf("%w: bad length prefix %q", ErrBadFrame, s.buffer[:terminator])
		}
		if length > maxFrameLength {
			return nil, false, fmt.Errorf("%w: length %d exceeds maximum %d", ErrBadFrame, length, maxFrameLength)
		}
		s.buffer = s.buffer[terminator+1:]
		s.length = length
		s.haveLength = true
	}

	// The payload is followed by one more NUL.
	if len(s.buffer) < s.length+1 {
		return nil, false, nil
	}
	if s.buffer[s.length] != 0 {
		return nil, false, fmt.Errorf("%w: payload of %d bytes not NUL terminated", ErrBadFrame, s.length)
	}
	payload = make([]byte, s.length)
	copy(payload, s.buffer[:s.length])
	s.buffer = s.buffer[s.length+1:]
	s.haveLength = false
	s.length = 0
	if len(s.buffer) == 0 {
		s.buffer = nil
	}
	return payload, true, nil
}

// AppendFrame appends the wire form of payload to dst:
// "<len(payload)>\0<payload>\0".
func AppendFrame(dst, payload []byte) []byte {
	dst = strconv.AppendInt(dst, int64(len(payload)), 10)
	dst = append(dst, 0)
	dst = append(dst, payload...)
	return append(dst, 0)
}
