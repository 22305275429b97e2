package instance

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/sqlerr"
)

// serve is the worker loop of the Instance. Statements recorded in metadata
// are restored before the first Command is received. serve exits on Stop,
// or when the queue is closed and drained.
func (in *Instance) serve() {
	defer close(in.doneCh)

	in.conn.Lock()
	var n, err = in.cache.Restore()
	in.conn.Unlock()
	close(in.restoredCh)

	if err != nil {
		log.WithFields(log.Fields{"path": in.conn.Path(), "err": err}).
			Warn("failed to restore statements from metadata")
	} else if n != 0 {
		log.WithFields(log.Fields{"path": in.conn.Path(), "statements": n}).
			Debug("restored statements")
	}

	for {
		var cmd, ok = in.queue.receive()
		if !ok {
			break
		} else if _, stop := cmd.(Stop); stop {
			break
		}
		in.execute(cmd)
	}

	in.conn.Lock()
	in.closed = true
	in.cache.Clear()
	if err := in.conn.Close(); err != nil {
		log.WithFields(log.Fields{"path": in.conn.Path(), "err": err}).
			Warn("failed to close instance database")
	}
	in.conn.Unlock()

	log.WithField("path", in.conn.Path()).Debug("instance worker exited")
}

// execute |cmd| and deliver exactly one Reply to its client, even if
// execution panics.
func (in *Instance) execute(cmd Command) {
	var name = nameOf(cmd)
	var client = clientOf(cmd)

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"command": name, "panic": r}).
				Error("recovered panic while executing command")

			var err = sqlerr.New(sqlerr.Engine, fmt.Sprint(r),
				"An internal error occurred while executing the command")
			in.observe(name, err)
			client.Unblock(host.ErrorReply(err))
		}
	}()

	var reply, err = in.run(cmd)
	in.observe(name, err)

	if err != nil {
		reply = host.ErrorReply(err)
	}
	if !client.Unblock(reply) {
		log.WithField("command", name).Debug("client timed out before reply was delivered")
	}
}

func (in *Instance) observe(name string, err error) {
	if in.cfg.Observer != nil {
		in.cfg.Observer.Result(name, err)
	}
	log.WithFields(log.Fields{"command": name, "path": in.conn.Path(), "err": err}).
		Debug("executed command")
}

// run |cmd| against the database, returning its Reply or error.
func (in *Instance) run(cmd Command) (host.Reply, error) {
	if c, ok := cmd.(MakeCopy); ok {
		if err := in.copyTo(c.Destination, time.Now().Add(DefaultDeadline)); err != nil {
			return nil, err
		}
		return okReply, nil
	}

	in.conn.Lock()
	defer in.conn.Unlock()

	switch c := cmd.(type) {
	case Exec:
		if expired(c.Deadline) {
			return nil, sqlerr.NewTimeout()
		}
		defer in.enterContext()()
		return in.runAdHoc(c.Query, false, "", c.Deadline)

	case Query:
		if expired(c.Deadline) {
			return nil, sqlerr.NewTimeout()
		}
		defer in.enterContext()()
		return in.runAdHoc(c.Query, true, c.Stream, c.Deadline)

	case ExecStatement:
		if expired(c.Deadline) {
			return nil, sqlerr.NewTimeout()
		}
		defer in.enterContext()()

		var cur, err = in.cache.Exec(c.ID, c.Args)
		if err != nil {
			return nil, err
		}
		return in.deliver(cur, "", c.Deadline)

	case QueryStatement:
		if expired(c.Deadline) {
			return nil, sqlerr.NewTimeout()
		}
		defer in.enterContext()()

		var cur, err = in.cache.Query(c.ID, c.Args)
		if err != nil {
			return nil, err
		}
		return in.deliver(cur, c.Stream, c.Deadline)

	case CompileStatement:
		return okOrError(in.cache.Insert(c.ID, c.Text))

	case UpdateStatement:
		return okOrError(in.cache.Update(c.ID, c.Text))

	case DeleteStatement:
		return okOrError(in.cache.Delete(c.ID))

	default:
		panic(fmt.Sprintf("unexpected command %T", cmd))
	}
}

// runAdHoc compiles and runs |text|. If |readOnly|, a statement which may
// modify the database is rejected before it's run.
func (in *Instance) runAdHoc(text string, readOnly bool, stream string, deadline time.Time) (host.Reply, error) {
	var stmt, err = in.conn.Prepare(text)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	if readOnly && !stmt.IsReadOnly() {
		return nil, sqlerr.ErrNotReadOnly
	}
	cur, err := stmt.Execute(nil)
	if err != nil {
		return nil, err
	}
	return in.deliver(cur, stream, deadline)
}

// deliver the outcome of |cur|, either by materializing it into a Reply or,
// if |stream| is set, by appending its rows to the named Stream. |cur| is
// closed on return.
func (in *Instance) deliver(cur *engine.Cursor, stream string, deadline time.Time) (host.Reply, error) {
	defer cur.Close()

	var res *engine.Result
	var err error

	if stream != "" && cur.Kind == engine.CursorRows {
		res, err = streamRows(in.tsc, stream, cur, deadline)
	} else {
		res, err = cur.Materialize(deadline)
	}
	if err != nil {
		return nil, err
	}
	return resultReply(res), nil
}

func expired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
