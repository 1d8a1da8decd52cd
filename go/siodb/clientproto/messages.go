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

// Package clientproto defines the payload messages of the Siodb client
// protocol and their codec. The wire shapes are defined in
// clientprotocol.proto; the structs here marshal with protowire
// directly.
package clientproto

import (
	"fmt"

	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

// MessageType identifies the payload carried by a frame. It is the
// first varint of every frame.
type MessageType uint64

const (
	TypeCommand                      MessageType = 1
	TypeServerResponse               MessageType = 2
	TypeBeginSessionRequest          MessageType = 5
	TypeBeginSessionResponse         MessageType = 6
	TypeClientAuthenticationRequest  MessageType = 7
	TypeClientAuthenticationResponse MessageType = 8
	TypeCloseSessionRequest          MessageType = 9
)

func (t MessageType) String() string {
	switch t {
	case TypeCommand:
		return "Command"
	case TypeServerResponse:
		return "ServerResponse"
	case TypeBeginSessionRequest:
		return "BeginSessionRequest"
	case TypeBeginSessionResponse:
		return "BeginSessionResponse"
	case TypeClientAuthenticationRequest:
		return "ClientAuthenticationRequest"
	case TypeClientAuthenticationResponse:
		return "ClientAuthenticationResponse"
	case TypeCloseSessionRequest:
		return "CloseSessionRequest"
	}
	return fmt.Sprintf("Unknown(%d)", uint64(t))
}

// Message is a protocol payload that can append its own protobuf
// encoding.
type Message interface {
	AppendTo([]byte) []byte
}

// BeginSessionRequest opens a session for a named user.
type BeginSessionRequest struct {
	UserName string
}

// BeginSessionResponse reports whether a session was opened and carries
// the challenge the client must sign.
type BeginSessionResponse struct {
	SessionStarted bool
	Challenge      []byte
}

// ClientAuthenticationRequest carries the signature over the challenge.
type ClientAuthenticationRequest struct {
	Signature []byte
}

// ClientAuthenticationResponse reports the authentication verdict.
type ClientAuthenticationResponse struct {
	Authenticated bool
}

// Command submits one SQL statement for execution.
type Command struct {
	RequestID uint64
	Text      string
}

// StatusMessage is a server diagnostic. A non-zero StatusCode reports a
// statement error.
type StatusMessage struct {
	StatusCode int32
	Text       string
}

// ColumnDescription describes one column of a result set. IsNull
// reports whether the column may hold nulls; when any column of a
// result set has it set, rows carry a null bitmask.
type ColumnDescription struct {
	Name   string
	Type   sqltypes.Type
	IsNull bool
}

// ServerResponse answers a Command. When column descriptions are
// present, rows follow on the connection outside the protobuf payload.
type ServerResponse struct {
	RequestID           uint64
	Message             []StatusMessage
	ColumnDescription   []ColumnDescription
	HasAffectedRowCount bool
	AffectedRowCount    uint64
}

// CloseSessionRequest tells the server the client is done. It has no
// response.
type CloseSessionRequest struct{}
