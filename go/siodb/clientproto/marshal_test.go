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

package clientproto

import (
	"bytes"
	"testing"

	"github.com/siodb/siodb-go-driver/go/sqltypes"
	"github.com/siodb/siodb-go-driver/go/test/utils"
)

type message interface {
	Message
	Unmarshal([]byte) error
}

func TestRoundTrip(t *testing.T) {
	testcases := []struct {
		name string
		in   message
		out  message
	}{{
		name: "BeginSessionRequest",
		in:   &BeginSessionRequest{UserName: "root"},
		out:  &BeginSessionRequest{},
	}, {
		name: "BeginSessionResponse",
		in:   &BeginSessionResponse{SessionStarted: true, Challenge: []byte{1, 2, 3, 4}},
		out:  &BeginSessionResponse{},
	}, {
		name: "ClientAuthenticationRequest",
		in:   &ClientAuthenticationRequest{Signature: bytes.Repeat([]byte{0xab}, 256)},
		out:  &ClientAuthenticationRequest{},
	}, {
		name: "ClientAuthenticationResponse",
		in:   &ClientAuthenticationResponse{Authenticated: true},
		out:  &ClientAuthenticationResponse{},
	}, {
		name: "Command",
		in:   &Command{RequestID: 42, Text: "SELECT * FROM SYS_TABLES"},
		out:  &Command{},
	}, {
		name: "ServerResponse",
		in: &ServerResponse{
			RequestID: 42,
			Message:   []StatusMessage{{StatusCode: -3, Text: "table not found"}},
			ColumnDescription: []ColumnDescription{
				{Name: "ID", Type: sqltypes.Uint64},
				{Name: "NAME", Type: sqltypes.Text, IsNull: true},
			},
			HasAffectedRowCount: true,
			AffectedRowCount:    7,
		},
		out: &ServerResponse{},
	}, {
		name: "CloseSessionRequest",
		in:   &CloseSessionRequest{},
		out:  &CloseSessionRequest{},
	}}
	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			enc := tcase.in.AppendTo(nil)
			if err := tcase.out.Unmarshal(enc); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			utils.MustMatch(t, tcase.in, tcase.out, "round trip mismatch")
		})
	}
}

// Pinned encodings. These bytes are what a protobuf library generates
// for clientprotocol.proto, so a field renumbering shows up here.
func TestWireVectors(t *testing.T) {
	testcases := []struct {
		name string
		msg  Message
		want []byte
	}{{
		name: "Command",
		msg:  &Command{RequestID: 1, Text: "SELECT 1"},
		want: append([]byte{0x08, 0x01, 0x12, 0x08}, "SELECT 1"...),
	}, {
		name: "BeginSessionRequest",
		msg:  &BeginSessionRequest{UserName: "root"},
		want: append([]byte{0x0a, 0x04}, "root"...),
	}, {
		name: "column description in a response",
		msg: &ServerResponse{
			ColumnDescription: []ColumnDescription{{Name: "id", Type: sqltypes.Uint64}},
		},
		want: []byte{0x1a, 0x06, 0x0a, 0x02, 'i', 'd', 0x10, 0x08},
	}, {
		name: "negative status code sign-extends",
		msg:  &StatusMessage{StatusCode: -5},
		want: []byte{0x08, 0xfb, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
	}, {
		name: "empty message",
		msg:  &CloseSessionRequest{},
		want: nil,
	}}
	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			if got := tcase.msg.AppendTo(nil); !bytes.Equal(got, tcase.want) {
				t.Errorf("encoded % x, want % x", got, tcase.want)
			}
		})
	}
}

func TestUnknownFieldsSkipped(t *testing.T) {
	enc := (&Command{RequestID: 9, Text: "SELECT 1"}).AppendTo(nil)
	// Field 15 varint, then field 16 length-delimited.
	enc = append(enc, 0x78, 0x2a)
	enc = append(enc, 0x82, 0x01, 0x03, 0xde, 0xad, 0xbf)

	var got Command
	if err := got.Unmarshal(enc); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	want := Command{RequestID: 9, Text: "SELECT 1"}
	utils.MustMatch(t, want, got, "unknown fields changed the known ones")
}

func TestMalformedPayloads(t *testing.T) {
	testcases := []struct {
		name string
		data []byte
	}{{
		name: "dangling tag",
		data: []byte{0x12},
	}, {
		name: "string length past end",
		data: []byte{0x12, 0x20, 'x'},
	}, {
		name: "truncated varint",
		data: []byte{0x08, 0x80},
	}, {
		name: "truncated nested message",
		data: []byte{0x1a, 0x05, 0x0a, 0x08, 'i'},
	}}
	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			var resp ServerResponse
			if err := resp.Unmarshal(tcase.data); err == nil {
				t.Error("Unmarshal: no error")
			}
		})
	}
}

func TestUnmarshalResets(t *testing.T) {
	m := Command{RequestID: 5, Text: "old"}
	if err := m.Unmarshal(nil); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if m.RequestID != 0 || m.Text != "" {
		t.Errorf("stale fields after reset: %+v", m)
	}
}

func TestMessageTypeNames(t *testing.T) {
	if got := TypeBeginSessionRequest.String(); got != "BeginSessionRequest" {
		t.Errorf("String() = %q", got)
	}
	if got := MessageType(77).String(); got != "Unknown(77)" {
		t.Errorf("String() = %q", got)
	}
}
