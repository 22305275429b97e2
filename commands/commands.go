// Package commands implements the REDISQL.* client commands of a host.Server.
// Handlers validate their arguments, resolve the Instance of a key, and
// lower each invocation into an instance.Command sent to its worker. The
// client blocks until the worker delivers a reply.
package commands

import (
	"strconv"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/instance"
	"go.gazette.dev/sqlkv/metrics"
	"go.gazette.dev/sqlkv/sqlerr"
)

// Version is replied by REDISQL.VERSION. It's set by main packages at link time.
var Version = "unknown"

// Register the Instance DataType and the REDISQL.* commands with |srv|.
// Invocations are counted into |stats|, which should also be the Observer
// of |cfg| so that executed outcomes are counted.
func Register(srv *host.Server, cfg *instance.Config, stats *metrics.Statistics) {
	srv.RegisterType(instance.DataType(srv, cfg))

	var h = &handlers{cfg: cfg, stats: stats}

	srv.RegisterCommand("REDISQL.CREATE_DB", h.counted("CREATE_DB", h.createDB))
	srv.RegisterCommand("REDISQL.EXEC", h.counted("EXEC", h.exec))
	srv.RegisterCommand("REDISQL.QUERY", h.counted("QUERY", h.query))
	srv.RegisterCommand("REDISQL.QUERY.INTO", h.counted("QUERY.INTO", h.queryInto))
	srv.RegisterCommand("REDISQL.CREATE_STATEMENT", h.counted("CREATE_STATEMENT", h.createStatement))
	srv.RegisterCommand("REDISQL.UPDATE_STATEMENT", h.counted("UPDATE_STATEMENT", h.updateStatement))
	srv.RegisterCommand("REDISQL.DELETE_STATEMENT", h.counted("DELETE_STATEMENT", h.deleteStatement))
	srv.RegisterCommand("REDISQL.EXEC_STATEMENT", h.counted("EXEC_STATEMENT", h.execStatement))
	srv.RegisterCommand("REDISQL.QUERY_STATEMENT", h.counted("QUERY_STATEMENT", h.queryStatement))
	srv.RegisterCommand("REDISQL.QUERY_STATEMENT.INTO", h.counted("QUERY_STATEMENT.INTO", h.queryStatementInto))
	srv.RegisterCommand("REDISQL.COPY", h.counted("COPY", h.copy))
	srv.RegisterCommand("REDISQL.STATISTICS", h.statistics)
	srv.RegisterCommand("REDISQL.VERSION", version)
}

type handlers struct {
	cfg   *instance.Config
	stats *metrics.Statistics
}

// handlerFunc is a command handler over validated UTF-8 arguments. It returns
// a non-nil error only if the command failed without blocking its client.
type handlerFunc func(ctx *host.Context, args []string) error

// counted adapts |fn| to a host.CommandFunc which validates arguments and
// counts the invocation of |name|. Errors returned by |fn| are counted as
// outcomes. Outcomes of blocked invocations are counted by the worker.
func (h *handlers) counted(name string, fn handlerFunc) host.CommandFunc {
	return func(ctx *host.Context, raw [][]byte) error {
		h.stats.Called(name)

		var args, err = parseArgs(raw)
		if err == nil {
			err = fn(ctx, args)
		}
		if err != nil {
			h.stats.Result(name, err)
		}
		return err
	}
}

// parseArgs converts |raw| arguments into strings, which must be valid UTF-8.
func parseArgs(raw [][]byte) ([]string, error) {
	var out = make([]string, len(raw))
	for i, b := range raw {
		if !utf8.Valid(b) {
			return nil, sqlerr.New(sqlerr.Argument,
				"String valid up to byte number "+strconv.Itoa(validUpTo(b)),
				"Got a non-valid UTF8 string as input")
		}
		out[i] = string(b)
	}
	return out, nil
}

// validUpTo returns the length of the longest valid UTF-8 prefix of |b|.
func validUpTo(b []byte) int {
	var n int
	for n < len(b) {
		var r, size = utf8.DecodeRune(b[n:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		n += size
	}
	return n
}

func newDeadline() time.Time { return time.Now().Add(instance.DefaultDeadline) }

var errKeyEmpty = sqlerr.New(sqlerr.Argument, "ERR - Error the key is empty", "")

// lookup returns the Instance held by |key|.
func lookup(ctx *host.Context, key string) (*instance.Instance, error) {
	var v, ok = ctx.Get(key)
	if !ok {
		return nil, errKeyEmpty
	}
	in, ok := v.(*instance.Instance)
	if !ok {
		return nil, host.ErrWrongType
	}
	return in, nil
}

// submit blocks the client and sends the Command built by |build| to |in|.
// If the Instance no longer accepts Commands, the client is unblocked with
// the error and its outcome is counted here.
func (h *handlers) submit(ctx *host.Context, name string, in *instance.Instance, build func(*host.BlockedClient) instance.Command) error {
	var bc = ctx.BlockClient()

	if err := in.Send(build(bc)); err != nil {
		log.WithFields(log.Fields{"command": name, "err": err}).Warn("failed to send command")
		h.stats.Result(name, err)
		bc.Unblock(host.ErrorReply(err))
	}
	return nil
}

func (h *handlers) createDB(ctx *host.Context, args []string) error {
	if len(args) != 2 && len(args) != 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 2 or 3")
	}
	var key, path = args[1], engine.InMemory
	if len(args) == 3 {
		path = args[2]
	}
	if _, ok := ctx.Get(key); ok {
		return host.ErrWrongType
	}

	var in, err = instance.Create(ctx.Server(), path, h.cfg)
	if err != nil {
		return err
	}
	ctx.Set(key, in)
	h.stats.Result("CREATE_DB", nil)

	log.WithFields(log.Fields{"key": key, "path": path}).Info("created database")
	ctx.Reply().WriteString("OK")
	return nil
}

func (h *handlers) exec(ctx *host.Context, args []string) error {
	if len(args) != 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 3, you provide %d", len(args))
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "EXEC", in, func(bc *host.BlockedClient) instance.Command {
		return instance.Exec{Query: args[2], Deadline: deadline, Client: bc}
	})
}

func (h *handlers) query(ctx *host.Context, args []string) error {
	if len(args) != 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 3, you provide %d", len(args))
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "QUERY", in, func(bc *host.BlockedClient) instance.Command {
		return instance.Query{Query: args[2], Deadline: deadline, Client: bc}
	})
}

func (h *handlers) queryInto(ctx *host.Context, args []string) error {
	if len(args) != 4 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 4, you provide %d", len(args))
	}
	var stream = args[1]
	var in, err = lookup(ctx, args[2])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "QUERY.INTO", in, func(bc *host.BlockedClient) instance.Command {
		return instance.Query{Query: args[3], Deadline: deadline, Stream: stream, Client: bc}
	})
}

func (h *handlers) createStatement(ctx *host.Context, args []string) error {
	if len(args) != 4 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 4")
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	return h.submit(ctx, "CREATE_STATEMENT", in, func(bc *host.BlockedClient) instance.Command {
		return instance.CompileStatement{ID: args[2], Text: args[3], Client: bc}
	})
}

func (h *handlers) updateStatement(ctx *host.Context, args []string) error {
	if len(args) != 4 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 4")
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	return h.submit(ctx, "UPDATE_STATEMENT", in, func(bc *host.BlockedClient) instance.Command {
		return instance.UpdateStatement{ID: args[2], Text: args[3], Client: bc}
	})
}

func (h *handlers) deleteStatement(ctx *host.Context, args []string) error {
	if len(args) != 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts 3")
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	return h.submit(ctx, "DELETE_STATEMENT", in, func(bc *host.BlockedClient) instance.Command {
		return instance.DeleteStatement{ID: args[2], Client: bc}
	})
}

func (h *handlers) execStatement(ctx *host.Context, args []string) error {
	if len(args) < 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it needs at least 3")
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "EXEC_STATEMENT", in, func(bc *host.BlockedClient) instance.Command {
		return instance.ExecStatement{ID: args[2], Args: args[3:], Deadline: deadline, Client: bc}
	})
}

func (h *handlers) queryStatement(ctx *host.Context, args []string) error {
	if len(args) < 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it needs at least 3")
	}
	var in, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "QUERY_STATEMENT", in, func(bc *host.BlockedClient) instance.Command {
		return instance.QueryStatement{ID: args[2], Args: args[3:], Deadline: deadline, Client: bc}
	})
}

func (h *handlers) queryStatementInto(ctx *host.Context, args []string) error {
	if len(args) < 4 {
		return sqlerr.Argumentf("Wrong number of arguments, it needs at least 4")
	}
	var stream = args[1]
	var in, err = lookup(ctx, args[2])
	if err != nil {
		return err
	}
	var deadline = newDeadline()
	return h.submit(ctx, "QUERY_STATEMENT.INTO", in, func(bc *host.BlockedClient) instance.Command {
		return instance.QueryStatement{ID: args[3], Args: args[4:], Deadline: deadline, Stream: stream, Client: bc}
	})
}

func (h *handlers) copy(ctx *host.Context, args []string) error {
	if len(args) != 3 {
		return sqlerr.Argumentf("Wrong number of arguments, it accepts exactly 3")
	}
	var src, err = lookup(ctx, args[1])
	if err != nil {
		return err
	}
	dst, err := lookup(ctx, args[2])
	if err != nil {
		return errNoDestination
	}
	return h.submit(ctx, "COPY", src, func(bc *host.BlockedClient) instance.Command {
		return instance.MakeCopy{Destination: dst, Client: bc}
	})
}

var errNoDestination = sqlerr.New(sqlerr.Argument, "Error in opening the DESTINATION database", "")

func (h *handlers) statistics(ctx *host.Context, _ [][]byte) error {
	var stats = h.stats.Snapshot()
	var w = ctx.Reply()

	w.WriteArray(len(stats))
	for _, s := range stats {
		w.WriteArray(2)
		w.WriteBulkString(s.Name)
		w.WriteInt64(s.Count)
	}
	return nil
}

func version(ctx *host.Context, _ [][]byte) error {
	ctx.Reply().WriteBulkString(Version)
	return nil
}
