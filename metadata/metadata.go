// Package metadata manages the RediSQLMetadata table held within each
// database instance. The table records the source text of each named
// statement, so that statements survive restarts and copies, and the
// path at which the instance's database lives.
package metadata

import (
	"github.com/pkg/errors"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/sqlerr"
)

// TableName of the metadata table.
const TableName = "RediSQLMetadata"

const (
	// TypeStatement tags rows of named statements.
	TypeStatement = "statement"
	// TypePath tags the row of the instance path.
	TypePath = "path"
)

// StatementRow is a persisted named statement.
type StatementRow struct {
	ID   string
	Text string
}

// CreateTable creates the metadata table if it doesn't exist.
func CreateTable(conn *engine.Conn) error {
	var _, err = conn.Execute(`CREATE TABLE IF NOT EXISTS RediSQLMetadata(data_type TEXT, key TEXT, value TEXT);`)
	return err
}

// EnableForeignKeys turns on enforcement of foreign key constraints.
func EnableForeignKeys(conn *engine.Conn) error {
	var _, err = conn.Execute(`PRAGMA foreign_keys = ON;`)
	return err
}

// IsDatabase returns whether |conn| holds a metadata table.
func IsDatabase(conn *engine.Conn) bool {
	var res, err = conn.Execute(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?1;`, TableName)
	return err == nil && res.Kind == engine.CursorRows
}

// Insert a metadata row.
func Insert(conn *engine.Conn, dataType, key, value string) error {
	var _, err = conn.Execute(`INSERT INTO RediSQLMetadata VALUES(?1, ?2, ?3);`, dataType, key, value)
	return err
}

// InsertStatement records a named statement.
func InsertStatement(conn *engine.Conn, id, text string) error {
	return Insert(conn, TypeStatement, id, text)
}

// UpdateStatement replaces the text of a recorded named statement.
func UpdateStatement(conn *engine.Conn, id, text string) error {
	var _, err = conn.Execute(
		`UPDATE RediSQLMetadata SET value = ?1 WHERE data_type = 'statement' AND key = ?2;`, text, id)
	return err
}

// DeleteStatement removes a recorded named statement.
func DeleteStatement(conn *engine.Conn, id string) error {
	var _, err = conn.Execute(
		`DELETE FROM RediSQLMetadata WHERE data_type = 'statement' AND key = ?1;`, id)
	return err
}

// Statements lists recorded named statements. Rows having a non-text
// identifier or statement are returned in |skipped| rather than failing
// the listing.
func Statements(conn *engine.Conn) (rows []StatementRow, skipped int, err error) {
	res, err := conn.Execute(
		`SELECT key, value FROM RediSQLMetadata WHERE data_type = 'statement' ORDER BY rowid;`)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "listing statement metadata")
	}
	for _, row := range res.Rows {
		if row[0].Kind != engine.Text || row[1].Kind != engine.Text {
			skipped++
			continue
		}
		rows = append(rows, StatementRow{ID: string(row[0].Bytes), Text: string(row[1].Bytes)})
	}
	return rows, skipped, nil
}

// InsertPath records the instance |path|.
func InsertPath(conn *engine.Conn, path string) error {
	return Insert(conn, TypePath, TypePath, path)
}

// UpdatePath rewrites the recorded instance |path|.
func UpdatePath(conn *engine.Conn, path string) error {
	var _, err = conn.Execute(
		`UPDATE RediSQLMetadata SET value = ?1 WHERE data_type = 'path' AND key = 'path';`, path)
	return err
}

// Path returns the recorded instance path.
func Path(conn *engine.Conn) (string, error) {
	var res, err = conn.Execute(
		`SELECT value FROM RediSQLMetadata WHERE data_type = 'path' AND key = 'path';`)
	if err != nil {
		return "", err
	}
	if res.Kind != engine.CursorRows {
		return "", sqlerr.New(sqlerr.Engine, "Path not found",
			"Couldn't find the path of the database in the metadata table")
	}
	var v = res.Rows[0][0]

	if v.Kind != engine.Text {
		return "", sqlerr.New(sqlerr.Engine, "Not found path as text of the database in metadata",
			"While looking into the metadata of the database we found information about the path "+
				"of the database itself, but the path was expected to be of TEXT type while it is not")
	} else if len(v.Bytes) == 0 {
		return "", sqlerr.New(sqlerr.Engine, "Found empty path",
			"The field of the path of the database is empty in the metadata table.")
	}
	return string(v.Bytes), nil
}

// Initialize prepares a newly opened instance database: the metadata table
// is created, foreign keys are enabled, and |path| is recorded. A database
// which already records a path, as when re-opening an instance file, has
// its path rewritten.
func Initialize(conn *engine.Conn, path string) error {
	if err := CreateTable(conn); err != nil {
		return err
	} else if err = EnableForeignKeys(conn); err != nil {
		return err
	}
	if _, err := Path(conn); err == nil {
		return UpdatePath(conn, path)
	}
	return InsertPath(conn, path)
}
