package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Outcomes of a command.
const (
	Call = "call"
	Ok   = "ok"
	Err  = "err"
)

// Commands are the commands for which statistics are kept, in the order
// of a Snapshot.
var Commands = []string{
	"CREATE_DB",
	"EXEC",
	"QUERY",
	"QUERY.INTO",
	"CREATE_STATEMENT",
	"EXEC_STATEMENT",
	"UPDATE_STATEMENT",
	"DELETE_STATEMENT",
	"QUERY_STATEMENT",
	"QUERY_STATEMENT.INTO",
	"COPY",
}

// NewCommandsTotal returns a CounterVec of commands by name and outcome.
func NewCommandsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlkv_commands_total",
		Help: "Cumulative number of commands invoked, and their outcomes.",
	}, []string{"command", "outcome"})
}

// LogEventsTotal counts logged events by level.
var LogEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "sqlkv_log_events_total",
	Help: "Cumulative number of logged events, by level.",
}, []string{"level"})

// CommandsTotal is the CounterVec of the default Statistics.
var CommandsTotal = NewCommandsTotal()

// Default Statistics, exported as CommandsTotal.
var Default = NewStatistics(CommandsTotal)

// Statistics counts invocations of commands, and their outcomes.
type Statistics struct {
	vec *prometheus.CounterVec
}

// NewStatistics returns Statistics counted into |vec|, which must have
// "command" and "outcome" labels.
func NewStatistics(vec *prometheus.CounterVec) *Statistics {
	return &Statistics{vec: vec}
}

// Called counts an invocation of |command|.
func (s *Statistics) Called(command string) {
	s.vec.WithLabelValues(command, Call).Inc()
}

// Result counts an outcome of |command|.
func (s *Statistics) Result(command string, err error) {
	if err != nil {
		s.vec.WithLabelValues(command, Err).Inc()
	} else {
		s.vec.WithLabelValues(command, Ok).Inc()
	}
}

// Stat is a named count.
type Stat struct {
	Name  string
	Count int64
}

// Snapshot returns current counts of each of Commands, as three Stats named
// "<command>", "<command> OK", and "<command> ERR".
func (s *Statistics) Snapshot() []Stat {
	var out = make([]Stat, 0, 3*len(Commands))
	for _, cmd := range Commands {
		out = append(out,
			Stat{Name: cmd, Count: s.value(cmd, Call)},
			Stat{Name: cmd + " OK", Count: s.value(cmd, Ok)},
			Stat{Name: cmd + " ERR", Count: s.value(cmd, Err)},
		)
	}
	return out
}

func (s *Statistics) value(command, outcome string) int64 {
	var m dto.Metric
	if err := s.vec.WithLabelValues(command, outcome).Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}
