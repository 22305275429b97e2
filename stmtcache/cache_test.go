package stmtcache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/metadata"
	"go.gazette.dev/sqlkv/sqlerr"
)

func TestCacheErrorCases(t *testing.T) {
	var conn = newConn(t)
	var c = New(conn)

	require.NoError(t, c.Insert("ins", "INSERT INTO t VALUES(?1)"))
	require.True(t, c.IsPresent("ins"))

	var err = c.Insert("ins", "INSERT INTO t VALUES(?1)")
	require.Equal(t, sqlerr.AlreadyExists, sqlerr.ReasonOf(err))

	err = c.Update("missing", "SELECT 1")
	require.Equal(t, sqlerr.NotFound, sqlerr.ReasonOf(err))
	require.EqualError(t, err, "Statement not present. - The statement is not present in the database, impossible to update it.")
	err = c.Delete("missing")
	require.Equal(t, sqlerr.NotFound, sqlerr.ReasonOf(err))

	_, err = c.Exec("missing", nil)
	require.Equal(t, sqlerr.ErrStatementNotFound, err)
	_, err = c.Query("missing", nil)
	require.Equal(t, sqlerr.ErrStatementNotFound, err)

	cur, err := c.Exec("ins", []string{"5"})
	require.NoError(t, err)
	require.Equal(t, engine.CursorDone, cur.Kind)
	require.Equal(t, int64(1), cur.ModifiedRows)

	_, err = c.Query("ins", nil)
	require.Equal(t, sqlerr.ErrNotReadOnly, err)

	// A failed compilation leaves neither cache nor metadata changed.
	err = c.Insert("bad", "SELEKT nope")
	require.Equal(t, sqlerr.Engine, sqlerr.KindOf(err))
	require.False(t, c.IsPresent("bad"))
	requireMetadata(t, conn, c)

	// A failed metadata write commits no change to the cache.
	require.NoError(t, c.Insert("sel", "SELECT a FROM t"))
	_, err = conn.Execute(`
		CREATE TRIGGER no_insert BEFORE INSERT ON RediSQLMetadata BEGIN SELECT RAISE(ABORT, 'rejected'); END;
		CREATE TRIGGER no_update BEFORE UPDATE ON RediSQLMetadata BEGIN SELECT RAISE(ABORT, 'rejected'); END;
		CREATE TRIGGER no_delete BEFORE DELETE ON RediSQLMetadata BEGIN SELECT RAISE(ABORT, 'rejected'); END;
	`)
	require.NoError(t, err)

	err = c.Insert("other", "SELECT 1")
	require.Equal(t, sqlerr.Engine, sqlerr.KindOf(err))
	require.False(t, c.IsPresent("other"))

	err = c.Update("sel", "DELETE FROM t")
	require.Equal(t, sqlerr.Engine, sqlerr.KindOf(err))
	cur, err = c.Query("sel", nil) // Still the read-only SELECT.
	require.NoError(t, err)
	require.Equal(t, engine.CursorRows, cur.Kind)
	require.NoError(t, cur.Close())

	err = c.Delete("sel")
	require.Equal(t, sqlerr.Engine, sqlerr.KindOf(err))
	require.True(t, c.IsPresent("sel"))

	require.Equal(t, []string{"ins", "sel"}, c.IDs())
	requireMetadata(t, conn, c)
}

func TestCacheAndMetadataCorrespond(t *testing.T) {
	var conn = newConn(t)
	var c = New(conn)

	require.NoError(t, c.Insert("a", "SELECT a FROM t"))
	require.NoError(t, c.Insert("b", "SELECT a FROM t WHERE a = ?1"))
	require.NoError(t, c.Insert("c", "DELETE FROM t"))
	require.NoError(t, c.Update("a", "SELECT COUNT(*) FROM t"))
	require.NoError(t, c.Delete("c"))
	require.Equal(t, []string{"a", "b"}, c.IDs())
	requireMetadata(t, conn, c)

	_, err := c.Exec("b", []string{}) // Wrong arity.
	require.Equal(t, sqlerr.Engine, sqlerr.KindOf(err))

	_, err = conn.Execute(`INSERT INTO t VALUES ('x'), ('y')`)
	require.NoError(t, err)

	cur, err := c.Query("a", nil)
	require.NoError(t, err)
	res, err := cur.Materialize(engine.NoDeadline)
	require.NoError(t, err)
	require.Equal(t, [][]engine.Value{{engine.IntValue(2)}}, res.Rows)

	cur, err = c.Query("b", []string{"y"})
	require.NoError(t, err)
	res, err = cur.Materialize(engine.NoDeadline)
	require.NoError(t, err)
	require.Equal(t, [][]engine.Value{{engine.TextValue("y")}}, res.Rows)
}

func TestRestoreFromMetadata(t *testing.T) {
	var conn = newConn(t)
	var c = New(conn)
	require.NoError(t, c.Insert("sel", "SELECT a FROM t"))

	// Simulate a restart: a fresh Cache over the same database, which also
	// holds a metadata row that no longer compiles.
	require.NoError(t, metadata.InsertStatement(conn, "broken", "SELECT * FROM gone"))

	var restored = New(conn)
	n, err := restored.Restore()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"sel"}, restored.IDs())

	// Restore is idempotent.
	n, err = restored.Restore()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	restored.Clear()
	require.Empty(t, restored.IDs())
	rows, _, err := metadata.Statements(conn)
	require.NoError(t, err)
	require.Len(t, rows, 2) // Clear doesn't touch metadata.
}

func newConn(t *testing.T) *engine.Conn {
	var conn, err = engine.Open(engine.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, metadata.Initialize(conn, engine.InMemory))
	_, err = conn.Execute(`CREATE TABLE t (a TEXT)`)
	require.NoError(t, err)
	return conn
}

func requireMetadata(t *testing.T, conn *engine.Conn, c *Cache) {
	var rows, _, err = metadata.Statements(conn)
	require.NoError(t, err)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if ids == nil {
		ids = []string{}
	}
	var cached = c.IDs()
	require.ElementsMatch(t, cached, ids)
}
