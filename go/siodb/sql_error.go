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
	"bytes"
	"fmt"
	"strings"

	"github.com/siodb/siodb-go-driver/go/siodb/clientproto"
)

// maxStatementInError bounds how much of a failing statement is echoed
// into error strings and logs.
const maxStatementInError = 512

// SQLError is the error returned for a statement the server rejected.
// It is recoverable: the session returns to idle and stays usable.
type SQLError struct {
	// Code is the status code of the first server diagnostic.
	Code int32
	// Message joins the texts of all server diagnostics.
	Message string
	// Statement is the SQL that triggered the error.
	Statement string
}

// NewSQLError creates a new SQLError.
func NewSQLError(code int32, message, statement string) *SQLError {
	return &SQLError{Code: code, Message: message, Statement: statement}
}

func sqlErrorFromStatus(status []clientproto.StatusMessage, statement string) *SQLError {
	texts := make([]string, 0, len(status))
	for _, s := range status {
		texts = append(texts, s.Text)
	}
	return &SQLError{
		Code:      status[0].StatusCode,
		Message:   strings.Join(texts, "; "),
		Statement: statement,
	}
}

// Error implements the error interface. The status code rides along in
// a parseable form because errors cross process boundaries as strings.
func (se *SQLError) Error() string {
	buf := &bytes.Buffer{}
	buf.WriteString(se.Message)
	fmt.Fprintf(buf, " (status %v)", se.Code)
	if se.Statement != "" {
		fmt.Fprintf(buf, " during statement: %s", truncateForError(se.Statement))
	}
	return buf.String()
}

// Number returns the server status code.
func (se *SQLError) Number() int32 {
	return se.Code
}

func truncateForError(statement string) string {
	if len(statement) <= maxStatementInError {
		return statement
	}
	return statement[:maxStatementInError] + " [...]"
}
