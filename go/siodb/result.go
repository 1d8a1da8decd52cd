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
	"errors"
	"fmt"
	"time"

	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

// Rows is a cursor over one result set. It reads rows off the
// connection on demand, so it owns the session until exhausted or
// closed. Like the Conn it belongs to, it is not safe for concurrent
// use.
type Rows struct {
	conn        *Conn
	columns     []clientproto.ColumnDescription
	maskPresent bool
	maskSize    int

	affected    uint64
	hasAffected bool

	// row is the current row, nil before the first Next and after
	// exhaustion.
	row      []sqltypes.Value
	err      error
	rowsRead uint64
	done     bool
	// invalid is set when the session moves on without the cursor:
	// Close on the Conn, or a fatal error.
	invalid bool
}

func newRows(c *Conn, resp *clientproto.ServerResponse) *Rows {
	r := &Rows{
		conn:        c,
		columns:     resp.ColumnDescription,
		affected:    resp.AffectedRowCount,
		hasAffected: resp.HasAffectedRowCount,
	}
	for _, col := range r.columns {
		if col.IsNull {
			r.maskPresent = true
			break
		}
	}
	r.maskSize = (len(r.columns) + 7) / 8
	// No columns means no row stream follows.
	if len(r.columns) == 0 {
		r.done = true
	}
	return r
}

// Columns returns the column descriptions of the result set, in
// result order.
func (r *Rows) Columns() []clientproto.ColumnDescription {
	return r.columns
}

// Next advances to the next row. It returns false when the result set
// is exhausted or an error occurred; check Err to tell the two apart.
// Calling Next again after it returned false stays false.
func (r *Rows) Next() bool {
	if r.done || r.invalid || r.err != nil {
		return false
	}
	length, err := r.conn.readRowLength()
	if err != nil {
		r.err = r.conn.fail(err)
		r.row = nil
		r.done = true
		return false
	}
	if length == 0 {
		r.row = nil
		r.done = true
		r.conn.cursorDone(r)
		return false
	}
	payload, err := r.conn.readRowPayload(length)
	if err != nil {
		r.err = r.conn.fail(err)
		r.row = nil
		r.done = true
		return false
	}
	row, err := decodeRow(payload, r.columns, r.maskPresent, r.maskSize)
	if err != nil {
		r.err = r.conn.fail(newProtocolError(MalformedPayload, "row %d: %v", r.rowsRead+1, err))
		r.row = nil
		r.done = true
		return false
	}
	r.row = row
	r.rowsRead++
	return true
}

// Err returns the error that stopped iteration, nil after a clean
// exhaustion.
func (r *Rows) Err() error {
	return r.err
}

// Close consumes any remaining rows so the connection is ready for the
// next statement. It is a no-op on an exhausted cursor.
func (r *Rows) Close() error {
	for r.Next() {
	}
	return r.Err()
}

// RowsRead returns how many rows the cursor has decoded so far.
func (r *Rows) RowsRead() uint64 {
	return r.rowsRead
}

// AffectedRows returns the server-reported affected row count and
// whether the response carried one. Result-set statements usually
// carry none.
func (r *Rows) AffectedRows() (uint64, bool) {
	return r.affected, r.hasAffected
}

// Value returns column i of the current row.
func (r *Rows) Value(i int) (sqltypes.Value, error) {
	if err := r.access("value"); err != nil {
		return sqltypes.NULL, err
	}
	if i < 0 || i >= len(r.row) {
		return sqltypes.NULL, &StateError{Op: "value", Message: fmt.Sprintf("column %d out of range, result has %d columns", i, len(r.row))}
	}
	return r.row[i], nil
}

// Values returns the current row. The slice is only valid until the
// next call to Next.
func (r *Rows) Values() []sqltypes.Value {
	return r.row
}

// Scan copies the current row into dest, one destination per column.
// Supported destinations are *sqltypes.Value, *int64, *uint64,
// *float64, *string, *[]byte and *time.Time. NULL only scans into
// *sqltypes.Value.
func (r *Rows) Scan(dest ...any) error {
	if err := r.access("scan"); err != nil {
		return err
	}
	if len(dest) != len(r.columns) {
		return &StateError{Op: "scan", Message: fmt.Sprintf("%d destinations for %d columns", len(dest), len(r.columns))}
	}
	for i, d := range dest {
		if err := scanValue(r.row[i], d); err != nil {
			return fmt.Errorf("column %q: %v", r.columns[i].Name, err)
		}
	}
	return nil
}

func (r *Rows) access(op string) error {
	if r.invalid {
		return &StateError{Op: op, Message: "cursor is no longer valid"}
	}
	if r.row == nil {
		if r.done {
			return &StateError{Op: op, Message: "result set is exhausted"}
		}
		return &StateError{Op: op, Message: "Next was not called"}
	}
	return nil
}

// invalidate detaches the cursor from the connection after the session
// moved on without it.
func (r *Rows) invalidate() {
	r.invalid = true
	r.row = nil
	if r.err == nil && r.conn.fatal != nil {
		r.err = r.conn.fatal
	}
}

func scanValue(v sqltypes.Value, dest any) error {
	if d, ok := dest.(*sqltypes.Value); ok {
		*d = v
		return nil
	}
	if v.IsNull() {
		return errors.New("cannot scan NULL, use *sqltypes.Value")
	}
	switch d := dest.(type) {
	case *int64:
		i, err := v.ToInt64()
		if err != nil {
			return err
		}
		*d = i
	case *uint64:
		u, err := v.ToUint64()
		if err != nil {
			return err
		}
		*d = u
	case *float64:
		f, err := v.ToFloat64()
		if err != nil {
			return err
		}
		*d = f
	case *string:
		s, err := v.ToString()
		if err != nil {
			return err
		}
		*d = s
	case *[]byte:
		b, err := v.ToBytes()
		if err != nil {
			return err
		}
		*d = b
	case *time.Time:
		t, err := v.ToTime()
		if err != nil {
			return err
		}
		*d = t
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}
	return nil
}

// decodeRow decodes one row payload against the column descriptions.
// The payload must be consumed exactly; trailing bytes and short reads
// are both malformed.
func decodeRow(payload []byte, columns []clientproto.ColumnDescription, maskPresent bool, maskSize int) ([]sqltypes.Value, error) {
	var mask []byte
	if maskPresent {
		if len(payload) < maskSize {
			return nil, fmt.Errorf("row of %d bytes is too short for a %d byte null bitmask", len(payload), maskSize)
		}
		mask = payload[:maskSize]
		payload = payload[maskSize:]
	}
	row := make([]sqltypes.Value, len(columns))
	for i, col := range columns {
		if maskPresent && mask[i/8]&(1<<(i%8)) != 0 {
			row[i] = sqltypes.NULL
			continue
		}
		var err error
		row[i], payload, err = sqltypes.ReadValue(payload, col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %d (%s): %v", i, col.Name, err)
		}
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%d bytes left after the last column", len(payload))
	}
	return row, nil
}
