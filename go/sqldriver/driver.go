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

// Package sqldriver exposes the Siodb client as a database/sql driver
// named "siodb". The data source name is a connection URI as accepted
// by siodb.ParseURI:
//
//	db, err := sqldriver.Open("siodbs://root@localhost:50000")
//
// The wire protocol has no placeholder binding, so statements take no
// arguments, and no transaction control, so Begin is not available.
package sqldriver

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/siodb/siodb-go-driver/go/siodb"
)

func init() {
	sql.Register("siodb", drv{})
}

// Open is a helper for sql.Open with the Siodb driver.
func Open(uri string) (*sql.DB, error) {
	return sql.Open("siodb", uri)
}

type drv struct{}

// Open implements driver.Driver.
func (d drv) Open(name string) (driver.Conn, error) {
	c, err := siodb.ConnectURI(name)
	if err != nil {
		return nil, err
	}
	return &conn{conn: c}, nil
}

type conn struct {
	conn *siodb.Conn
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{c: c, query: query}, nil
}

func (c *conn) Close() error {
	return c.conn.Close()
}

// Begin implements driver.Conn. The protocol has no transaction
// control verbs, so transactions are not available.
func (c *conn) Begin() (driver.Tx, error) {
	return nil, errors.New("siodb: transactions are not supported")
}

// IsValid implements driver.Validator so connections with a latched
// fatal error leave the pool instead of being reused.
func (c *conn) IsValid() bool {
	return !c.conn.IsClosed()
}

type stmt struct {
	c     *conn
	query string
}

func (s *stmt) Close() error {
	return nil
}

// NumInput returns 0: there is no placeholder binding on the wire.
func (s *stmt) NumInput() int {
	return 0
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	affected, err := s.c.conn.Execute(s.query)
	if err != nil {
		return nil, err
	}
	return result{rowsAffected: int64(affected)}, nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	siodbRows, err := s.c.conn.Query(s.query)
	if err != nil {
		return nil, err
	}
	return newRows(siodbRows), nil
}

type result struct {
	rowsAffected int64
}

func (r result) LastInsertId() (int64, error) {
	return 0, errors.New("siodb: no LastInsertId available")
}

func (r result) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}
