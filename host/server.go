package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Value is held by a key of the Server.
type Value interface {
	// TypeName is the registered DataType name of the Value.
	TypeName() string
}

// Freer is a Value which must release resources when its key is deleted
// or overwritten.
type Freer interface {
	Free()
}

// Snapshotter is a Value which must be copied while the execution context
// lock is held, before it may be saved without the lock.
type Snapshotter interface {
	Snapshot() Value
}

// DataType registers the checkpoint encoding of a Value type.
type DataType struct {
	Name string
	// Save writes the checkpoint payload of |v|. It's called without the
	// execution context lock held.
	Save func(w *RDBWriter, v Value) error
	// Load reads a Value from its checkpoint payload. It's called without
	// the execution context lock held.
	Load func(r *RDBReader) (Value, error)
}

// CommandFunc handles a client command. It's invoked with the execution
// context lock held, and must not block. A CommandFunc either writes a reply
// to Context.Reply, blocks the client through Context.BlockClient, or returns
// an error which is written as the reply.
type CommandFunc func(ctx *Context, args [][]byte) error

// ErrWrongType is returned by operations against a key holding a Value of
// another type.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// Server is an in-memory keyspace of typed Values, and a table of commands
// which operate on it. Commands run one at a time under the execution context
// lock. Goroutines other than command handlers obtain the lock through a
// ThreadSafeContext.
type Server struct {
	// BlockTimeout after which a blocked client is sent a null reply.
	BlockTimeout time.Duration
	// Checkpoint of the Server, if one is configured.
	Checkpoint *CheckpointConfig

	mu       sync.Mutex
	keys     map[string]Value
	types    map[string]DataType
	commands map[string]CommandFunc
}

// NewServer returns a Server with built-in commands registered.
func NewServer(blockTimeout time.Duration) *Server {
	var s = &Server{
		BlockTimeout: blockTimeout,
		keys:         make(map[string]Value),
		types:        make(map[string]DataType),
		commands:     make(map[string]CommandFunc),
	}
	registerBuiltins(s)
	return s
}

// RegisterType registers a DataType. It panics if the name is already used.
func (s *Server) RegisterType(dt DataType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.types[dt.Name]; ok {
		panic(fmt.Sprintf("data type %q already registered", dt.Name))
	}
	s.types[dt.Name] = dt
}

// RegisterCommand registers a command. Command names are case-insensitive.
func (s *Server) RegisterCommand(name string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands[strings.ToUpper(name)] = fn
}

// Dispatch runs the command |args| and writes its reply to |w|. If the
// command blocks its client, Dispatch releases the execution context lock
// and waits for the client to be unblocked or to time out. The final reply
// is written with the lock re-acquired.
func (s *Server) Dispatch(w ReplyWriter, args [][]byte) {
	if len(args) == 0 {
		w.WriteError("ERR empty command")
		return
	}
	var name = strings.ToUpper(string(args[0]))

	s.mu.Lock()
	var fn, ok = s.commands[name]
	if !ok {
		s.mu.Unlock()
		w.WriteError(fmt.Sprintf("ERR unknown command '%s'", args[0]))
		return
	}
	var ctx = &Context{srv: s, w: w}

	if err := fn(ctx, args); err != nil {
		w.WriteError(err.Error())
	}
	s.mu.Unlock()

	if ctx.blocked == nil {
		return
	}
	var reply = ctx.blocked.Wait()

	s.mu.Lock()
	reply.WriteReply(w)
	s.mu.Unlock()
}

// Command returns whether |name| is registered.
func (s *Server) Command(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var _, ok = s.commands[strings.ToUpper(name)]
	return ok
}

// Close deletes every key of the Server, freeing its Values.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range s.keys {
		delete(s.keys, key)
		free(v)
	}
}

// Context is the scope of a command invocation. It's valid only for the
// duration of the CommandFunc to which it's passed.
type Context struct {
	srv     *Server
	w       ReplyWriter
	blocked *BlockedClient
}

// Server of the Context.
func (c *Context) Server() *Server { return c.srv }

// Reply returns the ReplyWriter of the client.
func (c *Context) Reply() ReplyWriter { return c.w }

// BlockClient parks the client once the CommandFunc returns, until the
// returned BlockedClient is unblocked or times out.
func (c *Context) BlockClient() *BlockedClient {
	if c.blocked == nil {
		c.blocked = NewBlockedClient(c.srv.BlockTimeout)
	}
	return c.blocked
}

// Get returns the Value of |key|.
func (c *Context) Get(key string) (Value, bool) {
	var v, ok = c.srv.keys[key]
	return v, ok
}

// Set |key| to |v|, freeing a Value it previously held.
func (c *Context) Set(key string, v Value) {
	if prev, ok := c.srv.keys[key]; ok && prev != v {
		free(prev)
	}
	c.srv.keys[key] = v
}

// Delete |key|, freeing its Value. It returns whether the key existed.
func (c *Context) Delete(key string) bool {
	var v, ok = c.srv.keys[key]
	if ok {
		delete(c.srv.keys, key)
		free(v)
	}
	return ok
}

// Keys returns all keys in sorted order.
func (c *Context) Keys() []string { return c.srv.sortedKeys() }

func (s *Server) sortedKeys() []string {
	var out = make([]string, 0, len(s.keys))
	for key := range s.keys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func free(v Value) {
	if f, ok := v.(Freer); ok {
		f.Free()
		log.WithField("type", v.TypeName()).Debug("freed value")
	}
}
