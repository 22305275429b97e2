package instance

import (
	"time"

	"go.gazette.dev/sqlkv/host"
)

// DefaultDeadline bounds the execution of a command, measured from when
// it's sent or, for statement changes and copies, from when it's dequeued.
const DefaultDeadline = 10 * time.Second

// Command is a request executed by the worker of an Instance. It's one of
// Stop, Exec, Query, CompileStatement, ExecStatement, UpdateStatement,
// DeleteStatement, QueryStatement, or MakeCopy. Commands are not modified
// once sent.
type Command interface {
	isCommand()
}

// Stop ends the worker of the Instance.
type Stop struct{}

// Exec executes ad-hoc SQL text, which may modify the database.
type Exec struct {
	Query    string
	Deadline time.Time
	Client   *host.BlockedClient
}

// Query executes ad-hoc SQL text, which must not modify the database.
type Query struct {
	Query    string
	Deadline time.Time
	// Stream, if non-empty, names a Stream to which result rows are appended.
	// Otherwise, rows are replied directly.
	Stream string
	Client *host.BlockedClient
}

// CompileStatement compiles and caches a named statement.
type CompileStatement struct {
	ID     string
	Text   string
	Client *host.BlockedClient
}

// ExecStatement executes a named statement with positional arguments.
type ExecStatement struct {
	ID       string
	Args     []string
	Deadline time.Time
	Client   *host.BlockedClient
}

// UpdateStatement replaces the text of a named statement.
type UpdateStatement struct {
	ID     string
	Text   string
	Client *host.BlockedClient
}

// DeleteStatement removes a named statement.
type DeleteStatement struct {
	ID     string
	Client *host.BlockedClient
}

// QueryStatement executes a read-only named statement with positional
// arguments.
type QueryStatement struct {
	ID       string
	Args     []string
	Deadline time.Time
	// Stream, if non-empty, names a Stream to which result rows are appended.
	Stream string
	Client *host.BlockedClient
}

// MakeCopy replaces the database of Destination with a copy of the
// Instance's own. It's sent to the source Instance.
type MakeCopy struct {
	Destination *Instance
	Client      *host.BlockedClient
}

func (Stop) isCommand()             {}
func (Exec) isCommand()             {}
func (Query) isCommand()            {}
func (CompileStatement) isCommand() {}
func (ExecStatement) isCommand()    {}
func (UpdateStatement) isCommand()  {}
func (DeleteStatement) isCommand()  {}
func (QueryStatement) isCommand()   {}
func (MakeCopy) isCommand()         {}

// clientOf returns the BlockedClient of |cmd|, or nil for Stop.
func clientOf(cmd Command) *host.BlockedClient {
	switch c := cmd.(type) {
	case Exec:
		return c.Client
	case Query:
		return c.Client
	case CompileStatement:
		return c.Client
	case ExecStatement:
		return c.Client
	case UpdateStatement:
		return c.Client
	case DeleteStatement:
		return c.Client
	case QueryStatement:
		return c.Client
	case MakeCopy:
		return c.Client
	default:
		return nil
	}
}

// nameOf returns the statistics name of |cmd|.
func nameOf(cmd Command) string {
	switch c := cmd.(type) {
	case Exec:
		return "EXEC"
	case Query:
		if c.Stream != "" {
			return "QUERY.INTO"
		}
		return "QUERY"
	case CompileStatement:
		return "CREATE_STATEMENT"
	case ExecStatement:
		return "EXEC_STATEMENT"
	case UpdateStatement:
		return "UPDATE_STATEMENT"
	case DeleteStatement:
		return "DELETE_STATEMENT"
	case QueryStatement:
		if c.Stream != "" {
			return "QUERY_STATEMENT.INTO"
		}
		return "QUERY_STATEMENT"
	case MakeCopy:
		return "COPY"
	default:
		return "STOP"
	}
}
