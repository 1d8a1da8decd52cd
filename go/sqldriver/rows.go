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

package sqldriver

import (
	"database/sql/driver"
	"fmt"
	"io"

	"github.com/siodb/siodb-go-driver/go/siodb"
	"github.com/siodb/siodb-go-driver/go/sqltypes"
)

// rows adapts a siodb cursor to the database/sql/driver row iterator.
type rows struct {
	rows *siodb.Rows
}

func newRows(r *siodb.Rows) driver.Rows {
	return &rows{rows: r}
}

func (r *rows) Columns() []string {
	columns := r.rows.Columns()
	cols := make([]string, 0, len(columns))
	for _, col := range columns {
		cols = append(cols, col.Name)
	}
	return cols
}

func (r *rows) Close() error {
	return r.rows.Close()
}

func (r *rows) Next(dest []driver.Value) error {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	for i, v := range r.rows.Values() {
		converted, err := toDriverValue(v)
		if err != nil {
			return err
		}
		dest[i] = converted
	}
	return nil
}

func toDriverValue(v sqltypes.Value) (driver.Value, error) {
	switch {
	case v.IsNull():
		return nil, nil
	case v.Type() == sqltypes.Text:
		return v.ToString()
	case v.Type() == sqltypes.Binary:
		return v.ToBytes()
	case v.Type() == sqltypes.Timestamp:
		return v.ToTime()
	case sqltypes.IsSigned(v.Type()):
		return v.ToInt64()
	case sqltypes.IsUnsigned(v.Type()):
		return v.ToUint64()
	case sqltypes.IsFloat(v.Type()):
		return v.ToFloat64()
	}
	return nil, fmt.Errorf("unsupported column type %v", v.Type())
}
