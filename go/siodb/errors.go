/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package siodb

import "fmt"

// Every failure surfaces as exactly one of five error classes:
//
//	*TransportError       I/O failure on the byte stream, connection fatal
//	*ProtocolError        malformed or out-of-sequence frame, connection fatal
//	*AuthenticationError  handshake rejected, fatal to the attempt
//	*SQLError             server rejected the statement, session stays usable
//	*StateError           caller misuse, session state unchanged
//
// Connection-fatal errors are latched: the session remembers the first
// one and returns it from every later call without touching the wire.

// TransportError reports an I/O failure on the connection's byte
// stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// ProtocolErrorKind classifies protocol violations.
type ProtocolErrorKind int

const (
	// TruncatedFrame means the stream ended inside a frame or row.
	TruncatedFrame ProtocolErrorKind = iota
	// OversizedFrame means a declared length exceeded the configured
	// maximum. The frame is rejected before any allocation of that
	// size.
	OversizedFrame
	// UnexpectedMessage means the server sent a well-formed frame of
	// the wrong type for the current exchange.
	UnexpectedMessage
	// MalformedPayload means a payload or row did not decode.
	MalformedPayload
	// RequestIDMismatch means a response echoed a request id the
	// client never sent or has already completed.
	RequestIDMismatch
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case TruncatedFrame:
		return "truncated frame"
	case OversizedFrame:
		return "oversized frame"
	case UnexpectedMessage:
		return "unexpected message"
	case MalformedPayload:
		return "malformed payload"
	case RequestIDMismatch:
		return "request id mismatch"
	}
	return fmt.Sprintf("protocol error kind %d", int(k))
}

// ProtocolError reports a violation of the wire protocol by the peer.
type ProtocolError struct {
	Kind    ProtocolErrorKind
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v: %s", e.Kind, e.Message)
}

func newProtocolError(kind ProtocolErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError reports a rejected or failed handshake. The
// connection attempt is abandoned and the channel discarded; the
// server network state is untouched otherwise.
type AuthenticationError struct {
	User    string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for user %q: %s", e.User, e.Message)
}

// StateError reports an operation invoked in a session state that does
// not allow it, or a column access outside the descriptor range. The
// session state is unchanged.
type StateError struct {
	Op      string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func errResultSetNotDrained(op string) *StateError {
	return &StateError{Op: op, Message: "result set not drained; exhaust or close the open cursor first"}
}
