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
	"github.com/siodb/siodb-go-driver/go/log"
	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
)

// Execute runs one SQL statement and returns the server-reported
// affected row count. Statements without one, SELECT included, report
// zero. If the statement produces a result set its rows are drained
// before Execute returns, so the connection is idle either way.
func (c *Conn) Execute(statement string) (uint64, error) {
	resp, err := c.roundTrip("execute", statement)
	if err != nil {
		return 0, err
	}
	if len(resp.ColumnDescription) > 0 {
		rows := newRows(c, resp)
		c.state = stateResultOpen
		c.result = rows
		if err := rows.Close(); err != nil {
			return 0, err
		}
	}
	if resp.HasAffectedRowCount {
		return resp.AffectedRowCount, nil
	}
	return 0, nil
}

// Query runs one SQL statement and returns a cursor over its rows.
// The cursor owns the connection until it is exhausted or closed;
// starting another statement before that fails with a StateError.
// Statements that return no result set yield an exhausted cursor.
func (c *Conn) Query(statement string) (*Rows, error) {
	resp, err := c.roundTrip("query", statement)
	if err != nil {
		return nil, err
	}
	rows := newRows(c, resp)
	if len(resp.ColumnDescription) > 0 {
		c.state = stateResultOpen
		c.result = rows
	}
	return rows, nil
}

// roundTrip sends one Command and reads its ServerResponse. Server
// diagnostics become a SQLError and leave the session usable; protocol
// and transport failures latch and kill the connection.
func (c *Conn) roundTrip(op, statement string) (*clientproto.ServerResponse, error) {
	if err := c.check(op); err != nil {
		return nil, err
	}
	switch c.state {
	case stateResultOpen:
		return nil, errResultSetNotDrained(op)
	case stateExecuting:
		return nil, &StateError{Op: op, Message: "another statement is executing"}
	}
	if c.trace {
		log.Infof("%s: %s", op, truncateForError(statement))
	}
	c.state = stateExecuting
	c.requestID++

	cmd := &clientproto.Command{RequestID: c.requestID, Text: statement}
	if err := c.writeMessage(clientproto.TypeCommand, cmd); err != nil {
		return nil, c.fail(err)
	}
	resp := &clientproto.ServerResponse{}
	if err := c.readMessage(clientproto.TypeServerResponse, resp); err != nil {
		return nil, c.fail(err)
	}
	if resp.RequestID != c.requestID {
		return nil, c.fail(newProtocolError(RequestIDMismatch,
			"response for request %d, want %d", resp.RequestID, c.requestID))
	}
	c.state = stateIdle
	if len(resp.Message) > 0 {
		// An error response carries no rows, so the session stays
		// aligned and usable.
		return nil, sqlErrorFromStatus(resp.Message, statement)
	}
	return resp, nil
}
