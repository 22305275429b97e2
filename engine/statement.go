package engine

import (
	"database/sql/driver"
	"fmt"
	"io"

	"github.com/mattn/go-sqlite3"
	"go.gazette.dev/sqlkv/sqlerr"
)

// MultiStatement is compiled SQL text of one or more statements.
// Executing a MultiStatement runs each statement in order, and yields the
// Cursor of the last one.
//
// Statements are compiled by Prepare where possible. A statement which fails
// to compile after an earlier statement that may modify the schema is instead
// compiled when execution reaches it, so that it may reference tables created
// by that earlier statement.
type MultiStatement struct {
	conn     *Conn
	text     string
	stmts    []*statement
	readOnly bool
	params   int
	deferred bool // Some statement is compiled only upon execution.

	cursor *Cursor // Open Cursor of the last execution, if any.
}

type statement struct {
	text    string
	s       *sqlite3.SQLiteStmt // Nil until compiled.
	columns []string
	params  int
	dml     bool // Statement may change rows of tables.
}

// Prepare compiles |text|. It's an Engine error for |text| to hold
// no statements at all.
func (c *Conn) Prepare(text string) (*MultiStatement, error) {
	var parts = SplitStatements(text)
	if len(parts) == 0 {
		return nil, sqlerr.New(sqlerr.Engine, "Empty statement",
			"The provided text holds no SQL statement to compile")
	}
	var m = &MultiStatement{conn: c, text: text, readOnly: true}

	for _, part := range parts {
		var st = &statement{text: part, dml: isDML(part)}
		m.stmts = append(m.stmts, st)

		if m.deferred {
			continue
		} else if err := st.compile(c); err != nil && m.readOnly {
			m.Close()
			return nil, err
		} else if err != nil {
			m.deferred = true
			continue
		}

		if !st.s.Readonly() {
			m.readOnly = false
		}
		if st.params > m.params {
			m.params = st.params
		}
	}
	return m, nil
}

// Text is the SQL text the MultiStatement was compiled from.
func (m *MultiStatement) Text() string { return m.text }

// IsReadOnly returns whether no statement of the MultiStatement may modify
// the database.
func (m *MultiStatement) IsReadOnly() bool { return m.readOnly }

// NumParams is the number of positional arguments which must be bound.
// Statements not yet compiled are not reflected.
func (m *MultiStatement) NumParams() int { return m.params }

// Execute resets the MultiStatement, binds |args| positionally to each of its
// statements, and runs them. All but the last statement are run to completion.
// The returned Cursor remains valid until it's closed, or until the
// MultiStatement is next executed or closed.
func (m *MultiStatement) Execute(args []string) (*Cursor, error) {
	m.closeCursor()

	if len(args) < m.params || (len(args) > m.params && !m.deferred) {
		return nil, wrongParams(m.params, len(args))
	}
	var values = make([]driver.Value, len(args))
	for i := range args {
		values[i] = args[i]
	}

	for i, st := range m.stmts {
		if st.s == nil {
			if err := st.compile(m.conn); err != nil {
				return nil, err
			}
			if st.params > m.params {
				m.params = st.params
			}
			if st.params > len(args) {
				return nil, wrongParams(st.params, len(args))
			}
		}

		var cur, err = st.execute(values[:st.params])
		if err != nil {
			return nil, err
		} else if i+1 != len(m.stmts) {
			if err = cur.drain(); err != nil {
				return nil, err
			}
			continue
		}
		m.cursor = cur
		return cur, nil
	}
	panic("not reached")
}

// Close finalizes all statements. It's safe to call more than once.
func (m *MultiStatement) Close() error {
	m.closeCursor()

	var firstErr error
	for _, st := range m.stmts {
		if st.s == nil {
			continue
		} else if err := st.s.Close(); err != nil && firstErr == nil {
			firstErr = engineError(err)
		}
	}
	m.stmts = nil
	return firstErr
}

func (m *MultiStatement) closeCursor() {
	if m.cursor != nil {
		_ = m.cursor.Close()
		m.cursor = nil
	}
}

func wrongParams(expect, got int) error {
	return sqlerr.New(sqlerr.Engine, "Wrong number of parameters",
		fmt.Sprintf("The statement expects %d parameters, but %d were provided", expect, got))
}

// compile the statement, learning its parameters and result columns.
func (st *statement) compile(c *Conn) error {
	var ds, err = c.raw.Prepare(st.text)
	if err != nil {
		return engineError(err)
	}
	var s = ds.(*sqlite3.SQLiteStmt)

	// Bind no arguments to learn the result columns without stepping.
	rows, err := s.Query(nil)
	if err != nil {
		_ = s.Close()
		return engineError(err)
	}
	st.columns = rows.Columns()
	_ = rows.Close()

	st.s, st.params = s, ds.NumInput()
	return nil
}

// execute the statement. Statements without result columns are Done with
// their count of modified rows if they're DML, and are otherwise OK.
func (st *statement) execute(values []driver.Value) (*Cursor, error) {
	if len(st.columns) == 0 {
		var res, err = st.s.Exec(values)
		if err != nil {
			return nil, engineError(err)
		} else if !st.dml {
			return &Cursor{Kind: CursorOK}, nil
		}
		var n, _ = res.RowsAffected()
		return &Cursor{Kind: CursorDone, ModifiedRows: n}, nil
	}

	var rows, err = st.s.Query(values)
	if err != nil {
		return nil, engineError(err)
	}
	var first = make([]driver.Value, len(st.columns))

	if err = rows.Next(first); err == io.EOF {
		_ = rows.Close()
		return &Cursor{Kind: CursorDone}, nil
	} else if err != nil {
		_ = rows.Close()
		return nil, engineError(err)
	}
	return &Cursor{
		Kind:    CursorRows,
		columns: st.columns,
		rows:    rows,
		pending: first,
	}, nil
}

// isDML returns whether statement |text| may modify table rows. A WITH
// statement without result columns is necessarily DML.
func isDML(text string) bool {
	var sc = splitScanner{text: text}
	sc.next()

	if len(sc.leading) == 0 {
		return false
	}
	switch sc.leading[0] {
	case "INSERT", "UPDATE", "DELETE", "REPLACE", "WITH":
		return true
	}
	return false
}
