package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/instance"
	"go.gazette.dev/sqlkv/metrics"
	"go.gazette.dev/sqlkv/sqlerr"
)

func TestDatabaseLifecycle(t *testing.T) {
	var srv, _ = newServer(t)

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "db"))
	require.Equal(t, host.ErrorString(host.ErrWrongType.Error()), do(srv, "REDISQL.CREATE_DB", "db"))
	require.Equal(t, host.SimpleString("rediSQLDB"), do(srv, "TYPE", "db"))

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.EXEC", "db", "CREATE TABLE t (a INTEGER, b TEXT)"))
	require.Equal(t, []interface{}{host.SimpleString("DONE"), int64(2)},
		do(srv, "redisql.exec", "db", "INSERT INTO t VALUES (1, 'one'), (2, 'two')"))
	require.Equal(t, []interface{}{
		[]interface{}{int64(1), "one"},
		[]interface{}{int64(2), "two"},
	}, do(srv, "REDISQL.QUERY", "db", "SELECT a, b FROM t ORDER BY a"))
	require.Equal(t, host.ErrorString(sqlerr.ErrNotReadOnly.Error()),
		do(srv, "REDISQL.QUERY", "db", "DELETE FROM t"))

	// Deleting the key stops its worker.
	require.Equal(t, int64(1), do(srv, "DEL", "db"))
	require.Equal(t, host.ErrorString("ERR - Error the key is empty"),
		do(srv, "REDISQL.EXEC", "db", "SELECT 1"))
}

func TestCreateFileBackedDatabase(t *testing.T) {
	var srv, _ = newServer(t)
	var path = filepath.Join(t.TempDir(), "db.sqlite")

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "db", path))
	require.Equal(t, []interface{}{[]interface{}{"path", path}},
		do(srv, "REDISQL.QUERY", "db", "SELECT key, value FROM RediSQLMetadata WHERE data_type = 'path'"))
	require.Equal(t, int64(1), do(srv, "DEL", "db"))
}

func TestArgumentValidation(t *testing.T) {
	var srv, _ = newServer(t)
	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "db"))

	for _, tc := range []struct {
		args   []string
		expect string
	}{
		{[]string{"REDISQL.CREATE_DB"}, "Wrong number of arguments, it accepts 2 or 3"},
		{[]string{"REDISQL.CREATE_DB", "a", "b", "c"}, "Wrong number of arguments, it accepts 2 or 3"},
		{[]string{"REDISQL.EXEC", "db"}, "Wrong number of arguments, it accepts 3, you provide 2"},
		{[]string{"REDISQL.QUERY", "db", "a", "b"}, "Wrong number of arguments, it accepts 3, you provide 4"},
		{[]string{"REDISQL.QUERY.INTO", "s", "db"}, "Wrong number of arguments, it accepts 4, you provide 3"},
		{[]string{"REDISQL.CREATE_STATEMENT", "db", "id"}, "Wrong number of arguments, it accepts 4"},
		{[]string{"REDISQL.UPDATE_STATEMENT", "db", "id"}, "Wrong number of arguments, it accepts 4"},
		{[]string{"REDISQL.DELETE_STATEMENT", "db"}, "Wrong number of arguments, it accepts 3"},
		{[]string{"REDISQL.EXEC_STATEMENT", "db"}, "Wrong number of arguments, it needs at least 3"},
		{[]string{"REDISQL.QUERY_STATEMENT", "db"}, "Wrong number of arguments, it needs at least 3"},
		{[]string{"REDISQL.QUERY_STATEMENT.INTO", "s", "db"}, "Wrong number of arguments, it needs at least 4"},
		{[]string{"REDISQL.COPY", "db"}, "Wrong number of arguments, it accepts exactly 3"},
		{[]string{"REDISQL.EXEC", "missing", "SELECT 1"}, "ERR - Error the key is empty"},
		{[]string{"REDISQL.COPY", "db", "missing"}, "Error in opening the DESTINATION database"},
		{[]string{"REDISQL.EXEC", "db", "SELECT 'ab\xff'"}, "String valid up to byte number 10 - Got a non-valid UTF8 string as input"},
	} {
		require.Equal(t, host.ErrorString(tc.expect), do(srv, tc.args...), "args: %q", tc.args)
	}

	// Keys of another type.
	require.Equal(t, "1-0", do(srv, "XADD", "stream", "1-0", "f", "v"))
	require.Equal(t, host.ErrorString(host.ErrWrongType.Error()),
		do(srv, "REDISQL.EXEC", "stream", "SELECT 1"))
	require.Equal(t, host.ErrorString(host.ErrWrongType.Error()),
		do(srv, "REDISQL.CREATE_DB", "stream"))
}

func TestValidUpTo(t *testing.T) {
	require.Equal(t, 0, validUpTo([]byte("\xff")))
	require.Equal(t, 3, validUpTo([]byte("abc")))
	require.Equal(t, 3, validUpTo([]byte("aé\xe2\x82")))
}

func TestStatementsAndStreams(t *testing.T) {
	var srv, _ = newServer(t)

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "db"))
	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.EXEC", "db", "CREATE TABLE t (a INTEGER)"))

	require.Equal(t, host.SimpleString("OK"),
		do(srv, "REDISQL.CREATE_STATEMENT", "db", "ins", "INSERT INTO t VALUES (?1)"))
	require.Equal(t, host.ErrorString(sqlerr.ErrStatementExists.Error()),
		do(srv, "REDISQL.CREATE_STATEMENT", "db", "ins", "INSERT INTO t VALUES (?1)"))

	for _, v := range []string{"1", "2", "3"} {
		require.Equal(t, []interface{}{host.SimpleString("DONE"), int64(1)},
			do(srv, "REDISQL.EXEC_STATEMENT", "db", "ins", v))
	}
	require.Equal(t, host.SimpleString("OK"),
		do(srv, "REDISQL.UPDATE_STATEMENT", "db", "ins", "SELECT a FROM t WHERE a >= ?1 ORDER BY a"))
	require.Equal(t, []interface{}{[]interface{}{int64(2)}, []interface{}{int64(3)}},
		do(srv, "REDISQL.QUERY_STATEMENT", "db", "ins", "2"))

	var summary = do(srv, "REDISQL.QUERY_STATEMENT.INTO", "out", "db", "ins", "1").([]interface{})
	require.Len(t, summary, 1)
	var row = summary[0].([]interface{})
	require.Equal(t, "out", row[0])
	require.Equal(t, int64(3), row[3])
	require.Equal(t, int64(3), do(srv, "XLEN", "out"))

	var entries = do(srv, "XRANGE", "out", "-", "+", "COUNT", "1").([]interface{})
	require.Equal(t, []interface{}{"int:a", "1"}, entries[0].([]interface{})[1])

	summary = do(srv, "REDISQL.QUERY.INTO", "out2", "db", "SELECT a FROM t WHERE a = 2").([]interface{})
	require.Equal(t, int64(1), summary[0].([]interface{})[3])
	require.Equal(t, int64(1), do(srv, "XLEN", "out2"))

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.DELETE_STATEMENT", "db", "ins"))
	require.Equal(t, host.ErrorString(sqlerr.ErrStatementNotFound.Error()),
		do(srv, "REDISQL.QUERY_STATEMENT", "db", "ins"))
}

func TestCopy(t *testing.T) {
	var srv, _ = newServer(t)

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "src"))
	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.CREATE_DB", "dst"))
	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.EXEC", "src", "CREATE TABLE t (a)"))
	do(srv, "REDISQL.EXEC", "src", "INSERT INTO t VALUES (42)")
	require.Equal(t, host.SimpleString("OK"),
		do(srv, "REDISQL.CREATE_STATEMENT", "src", "get", "SELECT a FROM t"))

	require.Equal(t, host.SimpleString("OK"), do(srv, "REDISQL.COPY", "src", "dst"))
	require.Equal(t, []interface{}{[]interface{}{int64(42)}}, do(srv, "REDISQL.QUERY", "dst", "SELECT a FROM t"))
	require.Equal(t, []interface{}{[]interface{}{int64(42)}}, do(srv, "REDISQL.QUERY_STATEMENT", "dst", "get"))
}

func TestStatisticsAndVersion(t *testing.T) {
	var srv, stats = newServer(t)

	do(srv, "REDISQL.CREATE_DB", "db")
	do(srv, "REDISQL.EXEC", "db", "CREATE TABLE t (a)")
	do(srv, "REDISQL.EXEC", "db", "INSERT INTO missing VALUES (1)")
	do(srv, "REDISQL.EXEC", "missing", "SELECT 1")

	var reply = do(srv, "REDISQL.STATISTICS").([]interface{})
	require.Len(t, reply, 3*len(metrics.Commands))

	var counts = make(map[string]int64)
	for _, r := range reply {
		var pair = r.([]interface{})
		counts[pair[0].(string)] = pair[1].(int64)
	}
	require.Equal(t, int64(1), counts["CREATE_DB"])
	require.Equal(t, int64(1), counts["CREATE_DB OK"])
	require.Equal(t, int64(3), counts["EXEC"])
	require.Equal(t, int64(1), counts["EXEC OK"])
	require.Equal(t, int64(2), counts["EXEC ERR"])
	require.Equal(t, int64(0), counts["COPY"])

	require.Equal(t, stats.Snapshot()[0], metrics.Stat{Name: "CREATE_DB", Count: 1})
	require.Equal(t, Version, do(srv, "REDISQL.VERSION"))
}

func newServer(t *testing.T) (*host.Server, *metrics.Statistics) {
	var stats = metrics.NewStatistics(metrics.NewCommandsTotal())
	var srv = host.NewServer(0)
	Register(srv, &instance.Config{TempDir: t.TempDir(), Observer: stats}, stats)
	t.Cleanup(srv.Close)
	return srv, stats
}

func do(srv *host.Server, args ...string) interface{} {
	var raw = make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}
	var buf host.ReplyBuffer
	srv.Dispatch(&buf, raw)
	return buf.Last()
}
