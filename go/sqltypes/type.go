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

// Package sqltypes implements the column types and typed values carried
// by Siodb result sets.
package sqltypes

import "fmt"

// Type is the column data type reported by the server in column
// descriptors. The numeric values match the ColumnDataType enumeration
// of the client protocol and appear on the wire; they must not be
// renumbered.
type Type int32

// Null is the type of a decoded SQL NULL slot. It is synthesized by the
// driver for columns flagged null in the row bitmask and never appears
// on the wire.
const Null Type = -1

const (
	Bool Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Text
	NText
	Binary
	Date
	Time
	TimeWithTZ
	Timestamp
	TimestampWithTZ
)

var typeNames = map[Type]string{
	Null:            "NULL",
	Bool:            "BOOL",
	Int8:            "INT8",
	Uint8:           "UINT8",
	Int16:           "INT16",
	Uint16:          "UINT16",
	Int32:           "INT32",
	Uint32:          "UINT32",
	Int64:           "INT64",
	Uint64:          "UINT64",
	Float32:         "FLOAT",
	Float64:         "DOUBLE",
	Text:            "TEXT",
	NText:           "NTEXT",
	Binary:          "BINARY",
	Date:            "DATE",
	Time:            "TIME",
	TimeWithTZ:      "TIME WITH TIME ZONE",
	Timestamp:       "TIMESTAMP",
	TimestampWithTZ: "TIMESTAMP WITH TIME ZONE",
}

// String returns the SQL name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(t))
}

// IsSigned returns true if t is a signed integer type.
func IsSigned(t Type) bool {
	return t == Int8 || t == Int16 || t == Int32 || t == Int64
}

// IsUnsigned returns true if t is an unsigned integer type.
func IsUnsigned(t Type) bool {
	return t == Uint8 || t == Uint16 || t == Uint32 || t == Uint64
}

// IsIntegral returns true if t is an integer type of either signedness.
func IsIntegral(t Type) bool {
	return IsSigned(t) || IsUnsigned(t)
}

// IsFloat returns true if t is FLOAT or DOUBLE.
func IsFloat(t Type) bool {
	return t == Float32 || t == Float64
}

// IsSupported returns true if the driver can decode row slots of type t.
// Columns of unsupported types make the whole row undecodable, since the
// row format carries no per-slot lengths for skipping.
func IsSupported(t Type) bool {
	return IsIntegral(t) || IsFloat(t) || t == Text || t == Binary || t == Timestamp
}
