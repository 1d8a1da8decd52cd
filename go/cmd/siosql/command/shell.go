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

package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/siodb/siodb-go-driver/go/siodb"
)

// shell runs statements against one connection and renders the
// results. Results render as tables when table is set and as
// tab-separated lines otherwise; the summary lines after each
// statement only appear in table mode, so piped output stays clean.
type shell struct {
	conn *siodb.Conn
	out  io.Writer
	errw io.Writer

	table       bool
	interactive bool
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

// runBatch runs the --execute statements in order and stops at the
// first error.
func (sh *shell) runBatch(statements []string) error {
	for _, statement := range statements {
		statement = strings.TrimSuffix(strings.TrimSpace(statement), ";")
		if statement == "" {
			continue
		}
		if err := sh.runStatement(statement); err != nil {
			return err
		}
	}
	return nil
}

// repl reads ';'-terminated statements from in until EOF or a quit
// command. Interactive sessions print prompts and survive statement
// errors; non-interactive input stops at the first error, like a
// script should.
func (sh *shell) repl(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending string
	for {
		if sh.interactive {
			if pending == "" {
				sh.printf("siosql> ")
			} else {
				sh.printf("    ..> ")
			}
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if pending == "" {
			if quitCommand(line) {
				if sh.interactive {
					sh.printf("Bye\n")
				}
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		pending += line + "\n"

		var statements []string
		statements, pending = splitComplete(pending)
		if strings.TrimSpace(pending) == "" {
			pending = ""
		}
		for _, statement := range statements {
			if err := sh.runStatement(statement); err != nil {
				if !sh.interactive || sh.conn.IsClosed() {
					return err
				}
				sh.printError(err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(pending) != "" {
		return fmt.Errorf("unterminated statement: %s", strings.TrimSpace(pending))
	}
	if sh.interactive {
		sh.printf("Bye\n")
	}
	return nil
}

// runStatement executes one statement and renders its outcome.
func (sh *shell) runStatement(statement string) error {
	start := time.Now()
	rows, err := sh.conn.Query(statement)
	if err != nil {
		return err
	}
	if len(rows.Columns()) > 0 {
		return sh.renderRows(rows, start)
	}
	if !sh.table {
		return nil
	}
	if affected, ok := rows.AffectedRows(); ok {
		sh.printf("Query OK, %s %s affected (%s)\n\n",
			humanize.Comma(int64(affected)), plural(affected, "row"), elapsed(start))
	} else {
		sh.printf("Query OK (%s)\n\n", elapsed(start))
	}
	return nil
}

func (sh *shell) renderRows(rows *siodb.Rows, start time.Time) error {
	if !sh.table {
		return sh.renderTSV(rows)
	}

	headers := make([]string, len(rows.Columns()))
	for i, col := range rows.Columns() {
		headers[i] = col.Name
	}
	table := tablewriter.NewWriter(sh.out)
	table.SetHeader(headers)
	for rows.Next() {
		cells := make([]string, 0, len(headers))
		for _, v := range rows.Values() {
			cells = append(cells, v.String())
		}
		table.Append(cells)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if rows.RowsRead() == 0 {
		sh.printf("Empty set (%s)\n\n", elapsed(start))
		return nil
	}
	table.Render()
	n := rows.RowsRead()
	sh.printf("%s %s in set (%s)\n\n", humanize.Comma(int64(n)), plural(n, "row"), elapsed(start))
	return nil
}

// renderTSV writes a header line and one tab-separated line per row.
func (sh *shell) renderTSV(rows *siodb.Rows) error {
	headers := make([]string, len(rows.Columns()))
	for i, col := range rows.Columns() {
		headers[i] = col.Name
	}
	sh.printf("%s\n", strings.Join(headers, "\t"))
	cells := make([]string, len(headers))
	for rows.Next() {
		for i, v := range rows.Values() {
			cells[i] = v.String()
		}
		sh.printf("%s\n", strings.Join(cells, "\t"))
	}
	return rows.Err()
}

func (sh *shell) printError(err error) {
	var sqlErr *siodb.SQLError
	if errors.As(err, &sqlErr) {
		fmt.Fprintf(sh.errw, "ERROR %d: %s\n", sqlErr.Code, sqlErr.Message)
		return
	}
	fmt.Fprintf(sh.errw, "ERROR: %v\n", err)
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.2f sec", time.Since(start).Seconds())
}

func plural(n uint64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// quitCommand reports whether line is a client quit command. Like
// other SQL shells, these work without a terminating ';'.
func quitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), ";")) {
	case "quit", "exit", `\q`:
		return true
	}
	return false
}

// splitComplete splits text into the complete ';'-terminated
// statements it holds and the trailing remainder. A ';' inside a
// quoted string does not end a statement; quotes escape by doubling,
// which the scan handles naturally since the second quote just
// reopens the string.
func splitComplete(text string) (statements []string, rest string) {
	start := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			if s := strings.TrimSpace(text[start:i]); s != "" {
				statements = append(statements, s)
			}
			start = i + 1
		}
	}
	return statements, text[start:]
}
