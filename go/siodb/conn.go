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

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/siodb/siodb-go-driver/go/log"
	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
)

// sessionState tracks where a connection is in the statement cycle.
type sessionState int

const (
	// stateIdle: no statement in flight, ready for Execute or Query.
	stateIdle sessionState = iota
	// stateExecuting: a command was sent and its response is pending.
	stateExecuting
	// stateResultOpen: a cursor is consuming rows off the connection.
	stateResultOpen
	// stateClosed: the session ended, by Close or by a fatal error.
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateExecuting:
		return "executing"
	case stateResultOpen:
		return "result open"
	case stateClosed:
		return "closed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Conn is one authenticated session with a Siodb server. The protocol
// is strictly half duplex, so a Conn serves one statement at a time
// and is not safe for concurrent use; callers that share one must
// serialize access themselves.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *poolBufioWriter

	user           string
	trace          bool
	maxMessageSize uint64
	readTimeout    time.Duration
	writeTimeout   time.Duration

	// scratch accumulates outgoing payloads between frames.
	scratch []byte

	state     sessionState
	requestID uint64
	// result is the open cursor while state is stateResultOpen.
	result *Rows
	// fatal is the first connection-fatal error. Once set, every
	// operation returns it and the transport is already closed.
	fatal error
}

// Connect dials the server described by params and authenticates with
// the identity key. The returned Conn is ready for statements.
func Connect(params *ConnParams) (*Conn, error) {
	cp := *params
	cp.applyDefaults()

	signer, err := LoadIdentityFile(cp.IdentityFile)
	if err != nil {
		return nil, &AuthenticationError{User: cp.User, Message: err.Error()}
	}

	netConn, err := dial(&cp)
	if err != nil {
		return nil, err
	}

	c := newConn(netConn, &cp)
	if err := c.authenticate(signer); err != nil {
		c.conn.Close()
		return nil, err
	}
	if c.trace {
		log.Infof("session established for user %q at %s", c.user, cp.Address())
	}
	return c, nil
}

// ConnectURI parses uri and connects.
func ConnectURI(uri string) (*Conn, error) {
	params, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return Connect(params)
}

func dial(cp *ConnParams) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: cp.ConnectTimeout}
	switch cp.Scheme {
	case SchemeTCP:
		conn, err := dialer.Dial("tcp", cp.Address())
		if err != nil {
			return nil, newTransportError("dial", err)
		}
		return conn, nil
	case SchemeUnix:
		conn, err := dialer.Dial("unix", cp.Path)
		if err != nil {
			return nil, newTransportError("dial", err)
		}
		return conn, nil
	case SchemeTLS:
		conf := &tls.Config{
			ServerName:         cp.Host,
			InsecureSkipVerify: cp.TLSSkipVerify,
		}
		// DialWithDialer runs the handshake under the same timeout as
		// the TCP connect.
		conn, err := tls.DialWithDialer(dialer, "tcp", cp.Address(), conf)
		if err != nil {
			return nil, newTransportError("dial", err)
		}
		return conn, nil
	}
	return nil, fmt.Errorf("unsupported scheme %q", cp.Scheme)
}

func newConn(conn net.Conn, cp *ConnParams) *Conn {
	return &Conn{
		conn:           conn,
		reader:         bufio.NewReaderSize(conn, connBufferSize),
		writer:         newBufferedWriter(conn),
		user:           cp.User,
		trace:          cp.Trace,
		maxMessageSize: cp.MaxMessageSize,
		readTimeout:    cp.ReadTimeout,
		writeTimeout:   cp.WriteTimeout,
	}
}

// User returns the authenticated user name.
func (c *Conn) User() string {
	return c.user
}

// IsClosed reports whether the session has ended, by Close or by a
// latched fatal error.
func (c *Conn) IsClosed() bool {
	return c.state == stateClosed
}

// Close ends the session. It tells the server first, best effort,
// then closes the transport. Close is safe to call more than once and
// after a fatal error.
func (c *Conn) Close() error {
	if c.state == stateClosed {
		return nil
	}
	// The close frame is a courtesy; the server treats a vanished
	// client the same way.
	_ = c.writeMessage(clientproto.TypeCloseSessionRequest, &clientproto.CloseSessionRequest{})
	c.state = stateClosed
	if c.result != nil {
		c.result.invalidate()
		c.result = nil
	}
	if err := c.conn.Close(); err != nil {
		return newTransportError("close", err)
	}
	return nil
}

// fail latches err as the connection's fatal error and closes the
// transport. Every later operation returns the same error. Returns err
// so call sites can `return c.fail(err)`.
func (c *Conn) fail(err error) error {
	if c.fatal == nil {
		c.fatal = err
		c.state = stateClosed
		if c.result != nil {
			c.result.invalidate()
			c.result = nil
		}
		c.conn.Close()
	}
	return err
}

// check guards the start of an operation against a dead session.
func (c *Conn) check(op string) error {
	if c.fatal != nil {
		return c.fatal
	}
	if c.state == stateClosed {
		return &StateError{Op: op, Message: "session is closed"}
	}
	return nil
}

// cursorDone detaches a finished cursor and returns the session to
// idle. Called by the cursor itself when it sees the terminator.
func (c *Conn) cursorDone(r *Rows) {
	if c.result == r {
		c.result = nil
		if c.state == stateResultOpen {
			c.state = stateIdle
		}
	}
}
