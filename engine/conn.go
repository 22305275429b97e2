package engine

import (
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.gazette.dev/sqlkv/sqlerr"
)

// InMemory is the path of a database which lives only in memory.
const InMemory = ":memory:"

// Func is an application-defined SQL function, registered with each opened
// Conn. See sqlite3.SQLiteConn.RegisterFunc for the supported |Impl| forms.
type Func struct {
	Name string
	Impl interface{}
	Pure bool
}

// Conn is an open database connection.
type Conn struct {
	mu   sync.Mutex
	raw  *sqlite3.SQLiteConn
	path string
}

// Open the database at |path|, which may be InMemory. |funcs| are registered
// with the connection before it's returned.
func Open(path string, funcs ...Func) (*Conn, error) {
	var drv = &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			for _, f := range funcs {
				if err := c.RegisterFunc(f.Name, f.Impl, f.Pure); err != nil {
					return errors.WithMessagef(err, "registering function %s", f.Name)
				}
			}
			return nil
		},
	}
	var dc, err = drv.Open(path)
	if err != nil {
		return nil, engineError(err)
	}
	return &Conn{raw: dc.(*sqlite3.SQLiteConn), path: path}, nil
}

// Path is the path with which the Conn was opened.
func (c *Conn) Path() string { return c.path }

// InMemory returns whether the Conn is of an in-memory database.
func (c *Conn) InMemory() bool { return c.path == InMemory }

// Lock the Conn for exclusive use.
func (c *Conn) Lock() { c.mu.Lock() }

// Unlock the Conn.
func (c *Conn) Unlock() { c.mu.Unlock() }

// Close the Conn. Statements prepared from it must already be closed.
func (c *Conn) Close() error {
	if err := c.raw.Close(); err != nil {
		return engineError(err)
	}
	return nil
}

// Execute prepares |text|, executes it with |args|, and materializes its
// Result. It's a convenience for short statements having small results.
func (c *Conn) Execute(text string, args ...string) (*Result, error) {
	var stmt, err = c.Prepare(text)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	cur, err := stmt.Execute(args)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	return cur.Materialize(NoDeadline)
}

// engineError maps an error of the sqlite3 driver into an Engine error.
func engineError(err error) error {
	switch e := err.(type) {
	case sqlite3.Error:
		return sqlerr.New(sqlerr.Engine, e.Code.Error(), e.Error())
	case *sqlerr.Error:
		return e
	default:
		return sqlerr.New(sqlerr.Engine, err.Error(), "")
	}
}
