package engine

import (
	"database/sql/driver"
	"io"
	"time"

	"go.gazette.dev/sqlkv/sqlerr"
)

// CursorKind distinguishes the outcomes of an execution.
type CursorKind int

const (
	// CursorOK is a completed operation without a row count.
	CursorOK CursorKind = iota
	// CursorDone is a completed statement which produced no rows.
	CursorDone
	// CursorRows is a statement producing one or more rows.
	CursorRows
)

// NoDeadline may be passed where a deadline is expected, to disable it.
var NoDeadline time.Time

// Cursor is the outcome of executing a statement. Cursors of kind CursorRows
// step their statement as rows are read, and must be closed.
type Cursor struct {
	Kind CursorKind
	// ModifiedRows is the number of rows changed by a CursorDone statement.
	ModifiedRows int64

	columns []string
	rows    driver.Rows
	pending []driver.Value // Stepped row not yet returned by Next.
}

// Columns returns result column names of a CursorRows.
func (c *Cursor) Columns() []string { return c.columns }

// Next returns the next row of the Cursor, or io.EOF if none remain.
func (c *Cursor) Next() ([]Value, error) {
	if c.Kind != CursorRows || c.rows == nil {
		return nil, io.EOF
	}
	var raw = c.pending
	c.pending = nil

	if raw == nil {
		raw = make([]driver.Value, len(c.columns))
		if err := c.rows.Next(raw); err == io.EOF {
			c.Close()
			return nil, io.EOF
		} else if err != nil {
			c.Close()
			return nil, engineError(err)
		}
	}
	var row = make([]Value, len(raw))
	for i := range raw {
		row[i] = fromDriver(raw[i])
	}
	return row, nil
}

// Close resets the underlying statement. It's safe to call more than once.
func (c *Cursor) Close() error {
	if c.rows == nil {
		return nil
	}
	var err = c.rows.Close()
	c.rows, c.pending = nil, nil

	if err != nil {
		return engineError(err)
	}
	return nil
}

// drain steps the Cursor to completion.
func (c *Cursor) drain() error {
	for {
		if _, err := c.Next(); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// Result is a fully materialized Cursor.
type Result struct {
	Kind         CursorKind
	ModifiedRows int64
	Columns      []string
	Rows         [][]Value
}

// Materialize reads all remaining rows of the Cursor into a Result, and
// closes the Cursor. A Timeout error is returned if |deadline| (where
// non-zero) passes while rows are being read.
func (c *Cursor) Materialize(deadline time.Time) (*Result, error) {
	defer c.Close()

	var out = &Result{Kind: c.Kind, ModifiedRows: c.ModifiedRows, Columns: c.columns}
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, sqlerr.NewTimeout()
		}
		if row, err := c.Next(); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		} else {
			out.Rows = append(out.Rows, row)
		}
	}
}
