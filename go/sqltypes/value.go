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

package sqltypes

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a single column value from a Siodb row. The raw bytes hold
// the value exactly as its type encodes it on the wire, except that
// TEXT and BINARY values exclude their length prefix, which belongs to
// the row framing. Accessors decode on demand.
type Value struct {
	typ Type
	val []byte
}

// NULL is the decoded form of a SQL NULL slot.
var NULL = Value{typ: Null}

// NewValue builds a Value after checking that val is a well-formed
// encoding for typ.
func NewValue(typ Type, val []byte) (Value, error) {
	v, rest, err := ReadValue(val, typ)
	if err != nil {
		return NULL, err
	}
	if len(rest) != 0 {
		return NULL, fmt.Errorf("%v value: %d trailing bytes", typ, len(rest))
	}
	return v, nil
}

// MakeTrusted builds a Value without validating the encoding. Use it
// only on bytes already split by ReadValue or produced by the typed
// constructors.
func MakeTrusted(typ Type, val []byte) Value {
	if typ == Null {
		return NULL
	}
	return Value{typ: typ, val: val}
}

// NewInt8 encodes v as an INT8 value.
func NewInt8(v int8) Value {
	return Value{typ: Int8, val: []byte{byte(v)}}
}

// NewUint8 encodes v as a UINT8 value.
func NewUint8(v uint8) Value {
	return Value{typ: Uint8, val: []byte{v}}
}

// NewInt16 encodes v as an INT16 value.
func NewInt16(v int16) Value {
	return Value{typ: Int16, val: binary.LittleEndian.AppendUint16(nil, uint16(v))}
}

// NewUint16 encodes v as a UINT16 value.
func NewUint16(v uint16) Value {
	return Value{typ: Uint16, val: binary.LittleEndian.AppendUint16(nil, v)}
}

// NewInt32 encodes v as an INT32 value. Negative values encode as the
// varint of their 32-bit two's complement form.
func NewInt32(v int32) Value {
	return Value{typ: Int32, val: binary.AppendUvarint(nil, uint64(uint32(v)))}
}

// NewUint32 encodes v as a UINT32 value.
func NewUint32(v uint32) Value {
	return Value{typ: Uint32, val: binary.AppendUvarint(nil, uint64(v))}
}

// NewInt64 encodes v as an INT64 value.
func NewInt64(v int64) Value {
	return Value{typ: Int64, val: binary.AppendUvarint(nil, uint64(v))}
}

// NewUint64 encodes v as a UINT64 value.
func NewUint64(v uint64) Value {
	return Value{typ: Uint64, val: binary.AppendUvarint(nil, v)}
}

// NewFloat32 encodes v as a FLOAT value.
func NewFloat32(v float32) Value {
	return Value{typ: Float32, val: binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))}
}

// NewFloat64 encodes v as a DOUBLE value.
func NewFloat64(v float64) Value {
	return Value{typ: Float64, val: binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))}
}

// NewText encodes v as a TEXT value.
func NewText(v string) Value {
	return Value{typ: Text, val: []byte(v)}
}

// NewBinary encodes v as a BINARY value. The slice is kept, not copied.
func NewBinary(v []byte) Value {
	return Value{typ: Binary, val: v}
}

// NewTimestamp encodes v as a TIMESTAMP value in UTC.
func NewTimestamp(v time.Time) Value {
	return Value{typ: Timestamp, val: AppendRawDateTime(nil, v)}
}

// ReadValue splits the leading value of type typ off data and returns
// it along with the remaining bytes. TEXT and BINARY consume their
// length prefix but keep only the payload.
func ReadValue(data []byte, typ Type) (Value, []byte, error) {
	switch typ {
	case Int8, Uint8:
		return readFixed(data, typ, 1)
	case Int16, Uint16:
		return readFixed(data, typ, 2)
	case Float32:
		return readFixed(data, typ, 4)
	case Float64:
		return readFixed(data, typ, 8)
	case Int32, Uint32, Int64, Uint64:
		_, n := binary.Uvarint(data)
		if n <= 0 {
			return NULL, data, fmt.Errorf("%v value: truncated or oversized varint", typ)
		}
		return Value{typ: typ, val: data[:n]}, data[n:], nil
	case Text, Binary:
		size, n := binary.Uvarint(data)
		if n <= 0 {
			return NULL, data, fmt.Errorf("%v value: truncated or oversized length varint", typ)
		}
		if size > uint64(len(data)-n) {
			return NULL, data, fmt.Errorf("%v value: declared length %d exceeds %d remaining bytes", typ, size, len(data)-n)
		}
		end := n + int(size)
		return Value{typ: typ, val: data[n:end]}, data[end:], nil
	case Timestamp:
		size := rawDateSize
		if len(data) > 0 && data[0]&1 == 1 {
			size = rawDateTimeSize
		}
		return readFixed(data, typ, size)
	}
	return NULL, data, fmt.Errorf("unsupported column type %v", typ)
}

func readFixed(data []byte, typ Type, size int) (Value, []byte, error) {
	if len(data) < size {
		return NULL, data, fmt.Errorf("%v value: %d bytes, need %d", typ, len(data), size)
	}
	return Value{typ: typ, val: data[:size]}, data[size:], nil
}

// AppendTo appends the full wire encoding of the value to dst,
// including the length prefix of TEXT and BINARY values. NULL appends
// nothing; its presence is recorded in the row's null bitmask.
func (v Value) AppendTo(dst []byte) []byte {
	switch v.typ {
	case Null:
		return dst
	case Text, Binary:
		dst = binary.AppendUvarint(dst, uint64(len(v.val)))
	}
	return append(dst, v.val...)
}

// Type returns the column type of the value.
func (v Value) Type() Type {
	return v.typ
}

// IsNull returns true if this is a SQL NULL.
func (v Value) IsNull() bool {
	return v.typ == Null
}

// Raw returns the wire bytes of the value without copying.
func (v Value) Raw() []byte {
	return v.val
}

// ToInt64 decodes an integral value into an int64. NULL, non-integral
// types and UINT64 values above math.MaxInt64 return an error.
func (v Value) ToInt64() (int64, error) {
	switch v.typ {
	case Int8:
		return int64(int8(v.val[0])), nil
	case Uint8:
		return int64(v.val[0]), nil
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(v.val))), nil
	case Uint16:
		return int64(binary.LittleEndian.Uint16(v.val)), nil
	case Int32:
		u, err := v.uvarint()
		if err != nil {
			return 0, err
		}
		return int64(int32(uint32(u))), nil
	case Uint32:
		u, err := v.uvarint()
		if err != nil {
			return 0, err
		}
		return int64(uint32(u)), nil
	case Int64:
		u, err := v.uvarint()
		if err != nil {
			return 0, err
		}
		return int64(u), nil
	case Uint64:
		u, err := v.uvarint()
		if err != nil {
			return 0, err
		}
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("UINT64 value %d overflows int64", u)
		}
		return int64(u), nil
	}
	return 0, v.convertError("int64")
}

// ToUint64 decodes an integral value into a uint64. NULL, negative
// values and non-integral types return an error.
func (v Value) ToUint64() (uint64, error) {
	if IsSigned(v.typ) {
		i, err := v.ToInt64()
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, fmt.Errorf("%v value %d is negative", v.typ, i)
		}
		return uint64(i), nil
	}
	switch v.typ {
	case Uint8:
		return uint64(v.val[0]), nil
	case Uint16:
		return uint64(binary.LittleEndian.Uint16(v.val)), nil
	case Uint32:
		u, err := v.uvarint()
		if err != nil {
			return 0, err
		}
		return uint64(uint32(u)), nil
	case Uint64:
		return v.uvarint()
	}
	return 0, v.convertError("uint64")
}

// ToFloat64 decodes a FLOAT or DOUBLE value, or converts an integral
// one.
func (v Value) ToFloat64() (float64, error) {
	switch v.typ {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.val))), nil
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(v.val)), nil
	}
	switch {
	case IsSigned(v.typ):
		i, err := v.ToInt64()
		return float64(i), err
	case IsUnsigned(v.typ):
		u, err := v.ToUint64()
		return float64(u), err
	}
	return 0, v.convertError("float64")
}

// ToString returns the text of a TEXT value.
func (v Value) ToString() (string, error) {
	if v.typ != Text {
		return "", v.convertError("string")
	}
	return string(v.val), nil
}

// ToBytes returns the payload of a TEXT or BINARY value without
// copying.
func (v Value) ToBytes() ([]byte, error) {
	if v.typ != Text && v.typ != Binary {
		return nil, v.convertError("bytes")
	}
	return v.val, nil
}

// ToTime decodes a TIMESTAMP value into a UTC time.Time.
func (v Value) ToTime() (time.Time, error) {
	if v.typ != Timestamp {
		return time.Time{}, v.convertError("time")
	}
	t, n, err := DecodeRawDateTime(v.val)
	if err != nil {
		return time.Time{}, err
	}
	if n != len(v.val) {
		return time.Time{}, fmt.Errorf("TIMESTAMP value: %d trailing bytes", len(v.val)-n)
	}
	return t, nil
}

// String renders the value for display. NULL renders as "NULL", BINARY
// as lowercase hex and TIMESTAMP in SQL date-time notation. Values
// whose bytes do not decode render as hex.
func (v Value) String() string {
	switch v.typ {
	case Null:
		return "NULL"
	case Float32, Float64:
		f, err := v.ToFloat64()
		if err != nil {
			break
		}
		bits := 64
		if v.typ == Float32 {
			bits = 32
		}
		return strconv.FormatFloat(f, 'g', -1, bits)
	case Text:
		return string(v.val)
	case Binary:
		return hex.EncodeToString(v.val)
	case Timestamp:
		t, err := v.ToTime()
		if err != nil {
			break
		}
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format("2006-01-02 15:04:05.999999999")
	default:
		switch {
		case IsSigned(v.typ):
			if i, err := v.ToInt64(); err == nil {
				return strconv.FormatInt(i, 10)
			}
		case IsUnsigned(v.typ):
			if u, err := v.ToUint64(); err == nil {
				return strconv.FormatUint(u, 10)
			}
		}
	}
	return "0x" + hex.EncodeToString(v.val)
}

func (v Value) uvarint() (uint64, error) {
	u, n := binary.Uvarint(v.val)
	if n <= 0 || n != len(v.val) {
		return 0, fmt.Errorf("%v value: malformed varint", v.typ)
	}
	return u, nil
}

func (v Value) convertError(target string) error {
	return fmt.Errorf("%v value cannot be converted to %s", v.typ, target)
}
