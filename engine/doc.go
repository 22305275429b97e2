// Package engine wraps an embedded SQLite database connection, exposing the
// narrow set of primitives required to host SQL instances: multi-statement
// prepare, positional binding of text arguments, stepping of cursors over
// typed rows, and page-level backup between connections.
//
// A Conn is not safe for concurrent use. Callers serialize access through
// Conn.Lock, and every Cursor must be closed before the Conn is used for
// anything else (a Cursor's lifetime is bounded by its statement, which it
// holds mid-execution).
package engine
