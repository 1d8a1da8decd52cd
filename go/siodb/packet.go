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
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/siodb/siodb-go-driver/go/log"
	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
)

// unmarshaler is implemented by every clientproto message.
type unmarshaler interface {
	Unmarshal([]byte) error
}

// readUvarint reads a base-128 varint off the stream one byte at a
// time. Encodings longer than ten bytes or overflowing 64 bits are
// malformed.
func (c *Conn) readUvarint() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := c.reader.ReadByte()
		if err != nil {
			return 0, c.readError(err)
		}
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				break
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, newProtocolError(MalformedPayload, "varint overflows 64 bits")
}

// readError classifies a failed stream read. The protocol is request
// then response, so the driver only reads while the server owes it
// bytes: end of stream here means the peer quit mid-exchange.
func (c *Conn) readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newProtocolError(TruncatedFrame, "connection closed mid-frame")
	}
	return newTransportError("read", err)
}

func (c *Conn) setReadDeadline() error {
	if c.readTimeout == 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

func (c *Conn) setWriteDeadline() error {
	if c.writeTimeout == 0 {
		return nil
	}
	return c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
}

// writeMessage sends one frame: message type, payload length, payload.
// The flush at the end returns the buffered writer to the pool.
func (c *Conn) writeMessage(typ clientproto.MessageType, msg clientproto.Message) error {
	c.scratch = msg.AppendTo(c.scratch[:0])
	if err := c.setWriteDeadline(); err != nil {
		return newTransportError("write", err)
	}
	var hdr [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(typ))
	n += binary.PutUvarint(hdr[n:], uint64(len(c.scratch)))
	if _, err := c.writer.Write(hdr[:n]); err != nil {
		return newTransportError("write", err)
	}
	if _, err := c.writer.Write(c.scratch); err != nil {
		return newTransportError("write", err)
	}
	if err := c.writer.Flush(); err != nil {
		return newTransportError("write", err)
	}
	if c.trace {
		log.Infof("sent %v, %d byte payload", typ, len(c.scratch))
	}
	return nil
}

// readMessage reads the next frame, which must be of type want, and
// unmarshals its payload into msg. The caller never sees a partial
// frame: any failure mode surfaces as a typed error before msg is
// touched.
func (c *Conn) readMessage(want clientproto.MessageType, msg unmarshaler) error {
	if err := c.setReadDeadline(); err != nil {
		return newTransportError("read", err)
	}
	typ, err := c.readUvarint()
	if err != nil {
		return err
	}
	length, err := c.readUvarint()
	if err != nil {
		return err
	}
	if length > c.maxMessageSize {
		return newProtocolError(OversizedFrame, "declared payload of %d bytes exceeds the %d byte limit", length, c.maxMessageSize)
	}
	if got := clientproto.MessageType(typ); got != want {
		return newProtocolError(UnexpectedMessage, "server sent %v, want %v", got, want)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return c.readError(err)
	}
	if err := msg.Unmarshal(payload); err != nil {
		return newProtocolError(MalformedPayload, "%v payload: %v", want, err)
	}
	if c.trace {
		log.Infof("received %v, %d byte payload", want, length)
	}
	return nil
}

// readRowLength reads the next row header from an open result stream.
// Zero is the end-of-result terminator.
func (c *Conn) readRowLength() (uint64, error) {
	if err := c.setReadDeadline(); err != nil {
		return 0, newTransportError("read", err)
	}
	length, err := c.readUvarint()
	if err != nil {
		return 0, err
	}
	if length > c.maxMessageSize {
		return 0, newProtocolError(OversizedFrame, "declared row of %d bytes exceeds the %d byte limit", length, c.maxMessageSize)
	}
	return length, nil
}

// readRowPayload reads a whole row of the given length.
func (c *Conn) readRowPayload(length uint64) ([]byte, error) {
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return nil, c.readError(err)
	}
	return payload, nil
}
