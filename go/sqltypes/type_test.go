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

import "testing"

// The numeric values are part of the wire protocol. This test fails if
// anyone renumbers the enum.
func TestTypeWireValues(t *testing.T) {
	testcases := []struct {
		defined  Type
		expected int32
	}{{
		defined:  Bool,
		expected: 0,
	}, {
		defined:  Int8,
		expected: 1,
	}, {
		defined:  Uint8,
		expected: 2,
	}, {
		defined:  Int16,
		expected: 3,
	}, {
		defined:  Uint16,
		expected: 4,
	}, {
		defined:  Int32,
		expected: 5,
	}, {
		defined:  Uint32,
		expected: 6,
	}, {
		defined:  Int64,
		expected: 7,
	}, {
		defined:  Uint64,
		expected: 8,
	}, {
		defined:  Float32,
		expected: 9,
	}, {
		defined:  Float64,
		expected: 10,
	}, {
		defined:  Text,
		expected: 11,
	}, {
		defined:  NText,
		expected: 12,
	}, {
		defined:  Binary,
		expected: 13,
	}, {
		defined:  Date,
		expected: 14,
	}, {
		defined:  Time,
		expected: 15,
	}, {
		defined:  TimeWithTZ,
		expected: 16,
	}, {
		defined:  Timestamp,
		expected: 17,
	}, {
		defined:  TimestampWithTZ,
		expected: 18,
	}}
	for _, tcase := range testcases {
		if int32(tcase.defined) != tcase.expected {
			t.Errorf("%v: %d, want %d", tcase.defined, int32(tcase.defined), tcase.expected)
		}
	}
}

func TestTypeNames(t *testing.T) {
	testcases := []struct {
		typ  Type
		name string
	}{{
		typ:  Null,
		name: "NULL",
	}, {
		typ:  Int8,
		name: "INT8",
	}, {
		typ:  Float32,
		name: "FLOAT",
	}, {
		typ:  Float64,
		name: "DOUBLE",
	}, {
		typ:  TimestampWithTZ,
		name: "TIMESTAMP WITH TIME ZONE",
	}, {
		typ:  Type(99),
		name: "UNKNOWN(99)",
	}}
	for _, tcase := range testcases {
		if got := tcase.typ.String(); got != tcase.name {
			t.Errorf("Type(%d).String() = %q, want %q", int32(tcase.typ), got, tcase.name)
		}
	}
}

func TestTypePredicates(t *testing.T) {
	testcases := []struct {
		typ       Type
		signed    bool
		unsigned  bool
		float     bool
		supported bool
	}{{
		typ: Bool,
	}, {
		typ:       Int8,
		signed:    true,
		supported: true,
	}, {
		typ:       Uint8,
		unsigned:  true,
		supported: true,
	}, {
		typ:       Int16,
		signed:    true,
		supported: true,
	}, {
		typ:       Uint16,
		unsigned:  true,
		supported: true,
	}, {
		typ:       Int32,
		signed:    true,
		supported: true,
	}, {
		typ:       Uint32,
		unsigned:  true,
		supported: true,
	}, {
		typ:       Int64,
		signed:    true,
		supported: true,
	}, {
		typ:       Uint64,
		unsigned:  true,
		supported: true,
	}, {
		typ:       Float32,
		float:     true,
		supported: true,
	}, {
		typ:       Float64,
		float:     true,
		supported: true,
	}, {
		typ:       Text,
		supported: true,
	}, {
		typ: NText,
	}, {
		typ:       Binary,
		supported: true,
	}, {
		typ: Date,
	}, {
		typ:       Timestamp,
		supported: true,
	}, {
		typ: TimestampWithTZ,
	}, {
		typ: Null,
	}}
	for _, tcase := range testcases {
		if got := IsSigned(tcase.typ); got != tcase.signed {
			t.Errorf("IsSigned(%v) = %v, want %v", tcase.typ, got, tcase.signed)
		}
		if got := IsUnsigned(tcase.typ); got != tcase.unsigned {
			t.Errorf("IsUnsigned(%v) = %v, want %v", tcase.typ, got, tcase.unsigned)
		}
		if got := IsIntegral(tcase.typ); got != (tcase.signed || tcase.unsigned) {
			t.Errorf("IsIntegral(%v) = %v, want %v", tcase.typ, got, tcase.signed || tcase.unsigned)
		}
		if got := IsFloat(tcase.typ); got != tcase.float {
			t.Errorf("IsFloat(%v) = %v, want %v", tcase.typ, got, tcase.float)
		}
		if got := IsSupported(tcase.typ); got != tcase.supported {
			t.Errorf("IsSupported(%v) = %v, want %v", tcase.typ, got, tcase.supported)
		}
	}
}
