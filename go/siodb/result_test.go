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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

func TestDecodeRow(t *testing.T) {
	columns := []clientproto.ColumnDescription{
		{Name: "ID", Type: sqltypes.Int32},
		{Name: "NAME", Type: sqltypes.Text},
	}

	// varint 5, then "ann" with its length prefix.
	payload := []byte{0x05, 0x03, 'a', 'n', 'n'}
	row, err := decodeRow(payload, columns, false, 0)
	require.NoError(t, err)
	require.Len(t, row, 2)
	id, err := row[0].ToInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	name, err := row[1].ToString()
	require.NoError(t, err)
	assert.Equal(t, "ann", name)
}

func TestDecodeRowNullBitmask(t *testing.T) {
	columns := []clientproto.ColumnDescription{
		{Name: "A", Type: sqltypes.Int32, IsNull: true},
		{Name: "B", Type: sqltypes.Int32, IsNull: true},
		{Name: "C", Type: sqltypes.Int32, IsNull: true},
	}

	// Mask 0b101: columns A and C are null, only B is encoded.
	payload := []byte{0x05, 0x2a}
	row, err := decodeRow(payload, columns, true, 1)
	require.NoError(t, err)
	assert.True(t, row[0].IsNull())
	assert.False(t, row[1].IsNull())
	assert.True(t, row[2].IsNull())
	b, err := row[1].ToInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), b)
}

// A null slot consumes no payload bytes no matter what type the column
// declares. The payload below holds only the bitmask and the sibling column.
func TestDecodeRowNullEveryType(t *testing.T) {
	for _, typ := range []sqltypes.Type{
		sqltypes.Int8, sqltypes.Uint8,
		sqltypes.Int16, sqltypes.Uint16,
		sqltypes.Int32, sqltypes.Uint32,
		sqltypes.Int64, sqltypes.Uint64,
		sqltypes.Float32, sqltypes.Float64,
		sqltypes.Text, sqltypes.Binary, sqltypes.Timestamp,
	} {
		t.Run(typ.String(), func(t *testing.T) {
			columns := []clientproto.ColumnDescription{
				{Name: "A", Type: typ, IsNull: true},
				{Name: "B", Type: sqltypes.Int32, IsNull: true},
			}
			payload := []byte{0x01, 0x09}
			row, err := decodeRow(payload, columns, true, 1)
			require.NoError(t, err)
			assert.True(t, row[0].IsNull())
			b, err := row[1].ToInt64()
			require.NoError(t, err)
			assert.Equal(t, int64(9), b)
		})
	}
}

func TestDecodeRowErrors(t *testing.T) {
	intCol := clientproto.ColumnDescription{Name: "N", Type: sqltypes.Int32}
	testcases := []struct {
		name        string
		payload     []byte
		columns     []clientproto.ColumnDescription
		maskPresent bool
		maskSize    int
		err         string
	}{{
		name:        "mask longer than payload",
		payload:     []byte{0x00},
		columns:     []clientproto.ColumnDescription{intCol, intCol},
		maskPresent: true,
		maskSize:    2,
		err:         "null bitmask",
	}, {
		name:    "value truncated",
		payload: []byte{},
		columns: []clientproto.ColumnDescription{intCol},
		err:     "column 0",
	}, {
		name:    "trailing bytes",
		payload: []byte{0x05, 0x99},
		columns: []clientproto.ColumnDescription{intCol},
		err:     "left after the last column",
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRow(tc.payload, tc.columns, tc.maskPresent, tc.maskSize)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestScanValue(t *testing.T) {
	var n int64
	require.NoError(t, scanValue(sqltypes.NewInt32(-7), &n))
	assert.Equal(t, int64(-7), n)

	var u uint64
	require.NoError(t, scanValue(sqltypes.NewUint64(7), &u))
	assert.Equal(t, uint64(7), u)

	var f float64
	require.NoError(t, scanValue(sqltypes.NewFloat32(1.5), &f))
	assert.Equal(t, 1.5, f)

	var s string
	require.NoError(t, scanValue(sqltypes.NewText("hi"), &s))
	assert.Equal(t, "hi", s)

	var b []byte
	require.NoError(t, scanValue(sqltypes.NewBinary([]byte{1, 2}), &b))
	assert.Equal(t, []byte{1, 2}, b)

	when := time.Date(2021, 6, 1, 8, 30, 0, 0, time.UTC)
	var ts time.Time
	require.NoError(t, scanValue(sqltypes.NewTimestamp(when), &ts))
	assert.True(t, when.Equal(ts))

	var v sqltypes.Value
	require.NoError(t, scanValue(sqltypes.NULL, &v))
	assert.True(t, v.IsNull())

	// NULL only goes into *sqltypes.Value.
	err := scanValue(sqltypes.NULL, &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")

	err = scanValue(sqltypes.NewInt32(1), &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported destination")
}
