package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.gazette.dev/sqlkv/commands"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/instance"
	mbp "go.gazette.dev/sqlkv/mainboilerplate"
	"go.gazette.dev/sqlkv/metrics"
)

const iniFilename = "sqlkvctl.ini"

var baseCfg = new(struct {
	Log mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

// CheckpointConfig locates the checkpoint file to inspect.
type CheckpointConfig struct {
	Checkpoint string `long:"checkpoint" env:"CHECKPOINT" required:"true" description:"Path of the checkpoint file"`
	TempDir    string `long:"temp-dir" env:"TEMP_DIR" description:"Directory of temporary database files"`
}

// load the checkpoint into a new host.Server with REDISQL commands registered.
func (cfg CheckpointConfig) load(fs afero.Fs) (*host.Server, error) {
	var srv = host.NewServer(0)
	var stats = metrics.NewStatistics(metrics.NewCommandsTotal())
	commands.Register(srv, &instance.Config{TempDir: cfg.TempDir, Observer: stats}, stats)

	if err := srv.ReadCheckpoint(fs, cfg.Checkpoint); err != nil {
		srv.Close()
		return nil, err
	}
	return srv, nil
}

type cmdKeys struct {
	CheckpointConfig
}

func (cmd *cmdKeys) Execute([]string) error {
	mbp.InitLog(baseCfg.Log, nil)

	var srv, err = cmd.load(afero.NewOsFs())
	mbp.Must(err, "failed to load checkpoint", "path", cmd.Checkpoint)
	defer srv.Close()

	return writeKeys(os.Stdout, srv)
}

// writeKeys writes a table of keys of |srv|, their types, and a
// description of their values.
func writeKeys(w io.Writer, srv *host.Server) error {
	var table = tablewriter.NewWriter(w)
	table.Header("Key", "Type", "Detail")

	var err error
	srv.ThreadSafeContext().With(func(ctx *host.Context) {
		for _, key := range ctx.Keys() {
			var v, _ = ctx.Get(key)
			if err = table.Append([]string{key, v.TypeName(), describe(v)}); err != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return table.Render()
}

func describe(v host.Value) string {
	switch vv := v.(type) {
	case *instance.Instance:
		return fmt.Sprintf("path=%s statements=%d", vv.Path(), len(vv.Statements()))
	case *host.Stream:
		return fmt.Sprintf("entries=%d", vv.Len())
	default:
		return ""
	}
}

type cmdQuery struct {
	CheckpointConfig
	Args struct {
		Key   string `positional-arg-name:"KEY" description:"Key of the database"`
		Query string `positional-arg-name:"SQL" description:"Read-only query to run"`
	} `positional-args:"true" required:"true"`
}

func (cmd *cmdQuery) Execute([]string) error {
	mbp.InitLog(baseCfg.Log, nil)

	var srv, err = cmd.load(afero.NewOsFs())
	mbp.Must(err, "failed to load checkpoint", "path", cmd.Checkpoint)
	defer srv.Close()

	return query(os.Stdout, srv, cmd.Args.Key, cmd.Args.Query)
}

// query runs REDISQL.QUERY of |text| against |key| and writes its reply
// as a table.
func query(w io.Writer, srv *host.Server, key, text string) error {
	var buf host.ReplyBuffer
	srv.Dispatch(&buf, [][]byte{[]byte("REDISQL.QUERY"), []byte(key), []byte(text)})

	var rows, err = replyRows(buf.Last())
	if err != nil {
		return err
	}
	var table = tablewriter.NewWriter(w)
	if err = table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// replyRows converts a QUERY reply into table rows.
func replyRows(reply interface{}) ([][]string, error) {
	switch r := reply.(type) {
	case host.ErrorString:
		return nil, errors.New(string(r))
	case []interface{}:
		// A reply of [DONE, n] has no rows.
		if len(r) == 2 && r[0] == host.SimpleString("DONE") {
			return nil, nil
		}
		var out = make([][]string, 0, len(r))
		for _, row := range r {
			var cells, ok = row.([]interface{})
			if !ok {
				return nil, errors.Errorf("unexpected row %#v", row)
			}
			var strs = make([]string, len(cells))
			for i, c := range cells {
				strs[i] = cellString(c)
			}
			out = append(out, strs)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unexpected reply %#v", reply)
	}
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(c, 10)
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

func main() {
	var parser = flags.NewParser(baseCfg, flags.Default)

	_, _ = parser.AddCommand("keys", "List keys of a checkpoint", `
List the keys held by a checkpoint file, with their types. Databases are
described by their paths and number of statements, and streams by their
number of entries.
`, &cmdKeys{})

	_, _ = parser.AddCommand("query", "Query a database of a checkpoint", `
Load a checkpoint file and run a read-only query against the database held
by KEY. Rows are written as a table.
`, &cmdQuery{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
