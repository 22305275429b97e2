// Package instance implements database instances: SQL databases held by keys
// of a host.Server. Each Instance has a worker goroutine which exclusively
// executes Commands against its database, in the order they're sent, and
// delivers each result to the blocked client which sent it.
package instance

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/fileblocks"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/metadata"
	"go.gazette.dev/sqlkv/sqlerr"
	"go.gazette.dev/sqlkv/stmtcache"
)

// TypeName is the host DataType name of an Instance.
const TypeName = "rediSQLDB"

// Observer is notified of the outcome of each executed Command.
type Observer interface {
	Result(command string, err error)
}

// Config of Instances.
type Config struct {
	// BlockSize of the encoding of checkpointed databases.
	BlockSize int
	// TempDir holds temporary database files of checkpoints.
	// If empty, os.TempDir is used.
	TempDir string
	// Observer of Command outcomes. Optional.
	Observer Observer
}

// Instance is a SQL database and its worker.
type Instance struct {
	seq   uint64 // Orders the locking of Instance pairs.
	srv   *host.Server
	cfg   *Config
	conn  *engine.Conn
	cache *stmtcache.Cache
	queue *queue

	// Execution context of the Command being run, if it may be used by
	// application-defined SQL functions.
	current atomic.Pointer[host.ThreadSafeContext]
	// ThreadSafeContext of the worker.
	tsc *host.ThreadSafeContext

	closed     bool          // Guarded by the lock of |conn|.
	restoredCh chan struct{} // Closed after statements are restored.
	doneCh     chan struct{}
	freeOnce   sync.Once
}

var nextSeq uint64

// Create a new Instance at |path|, which may be engine.InMemory, and start
// its worker. If |path| is an existing database file of an Instance, its
// statements are restored.
func Create(srv *host.Server, path string, cfg *Config) (*Instance, error) {
	var in, err = open(srv, path, cfg)
	if err != nil {
		return nil, err
	}
	if err = metadata.Initialize(in.conn, path); err != nil {
		_ = in.conn.Close()
		return nil, err
	}
	in.start()
	return in, nil
}

// open the database of a new Instance, without starting its worker.
func open(srv *host.Server, path string, cfg *Config) (*Instance, error) {
	var in = &Instance{
		seq:        atomic.AddUint64(&nextSeq, 1),
		srv:        srv,
		cfg:        cfg,
		queue:      newQueue(),
		tsc:        srv.ThreadSafeContext(),
		restoredCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	var conn, err = engine.Open(path, in.functions()...)
	if err != nil {
		return nil, err
	}
	if err = metadata.EnableForeignKeys(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	in.conn = conn
	in.cache = stmtcache.New(conn)
	return in, nil
}

func (in *Instance) start() {
	log.WithFields(log.Fields{"path": in.conn.Path(), "seq": in.seq}).Debug("starting instance worker")
	go in.serve()
}

// TypeName returns TypeName.
func (in *Instance) TypeName() string { return TypeName }

// Path of the Instance database.
func (in *Instance) Path() string { return in.conn.Path() }

// IsStatementPresent returns whether the named statement |id| is cached.
// It may be called while the worker is executing, and blocks until the
// worker has restored statements recorded in metadata.
func (in *Instance) IsStatementPresent(id string) bool {
	<-in.restoredCh
	return in.cache.IsPresent(id)
}

// Statements returns the identifiers of cached statements, once restored.
func (in *Instance) Statements() []string {
	<-in.restoredCh
	return in.cache.IDs()
}

// Send |cmd| to the worker. Send doesn't block. It fails if the Instance
// has been freed.
func (in *Instance) Send(cmd Command) error {
	if !in.queue.send(cmd) {
		return errClosed
	}
	return nil
}

// Free stops the worker once previously sent Commands have executed.
// The database is closed as the worker exits. Free doesn't block.
func (in *Instance) Free() {
	in.freeOnce.Do(func() {
		in.queue.send(Stop{})
		in.queue.close()
	})
}

// Done selects when the worker has exited.
func (in *Instance) Done() <-chan struct{} { return in.doneCh }

// enterContext installs the worker's execution context for the duration of
// a Command. The returned func removes it, and must be called on every
// path out of the Command.
func (in *Instance) enterContext() func() {
	in.current.Store(in.tsc)
	return func() { in.current.Store(nil) }
}

// functions are application-defined SQL functions of the Instance.
func (in *Instance) functions() []engine.Func {
	return []engine.Func{{Name: "sqlkv_type", Impl: in.keyType}}
}

// keyType returns the type of host key |key|, or "none" if it doesn't exist.
func (in *Instance) keyType(key string) (string, error) {
	var tsc = in.current.Load()
	if tsc == nil {
		return "", errNoContext
	}
	var out = "none"
	tsc.With(func(ctx *host.Context) {
		if v, ok := ctx.Get(key); ok {
			out = v.TypeName()
		}
	})
	return out, nil
}

var (
	errClosed    = sqlerr.New(sqlerr.Engine, "Instance closed", "The database is no longer available")
	errNoContext = errors.New("sqlkv_type may only be called while executing a query")
)

// DataType returns the host DataType of Instances created within |srv|.
func DataType(srv *host.Server, cfg *Config) host.DataType {
	return host.DataType{
		Name: TypeName,
		Save: func(w *host.RDBWriter, v host.Value) error {
			return v.(*Instance).save(w)
		},
		Load: func(r *host.RDBReader) (host.Value, error) {
			var in, err = load(srv, cfg, r)
			if err != nil {
				return nil, err
			}
			return in, nil
		},
	}
}

func (cfg *Config) blockSize() int {
	if cfg.BlockSize == 0 {
		return fileblocks.DefaultBlockSize
	}
	return cfg.BlockSize
}
