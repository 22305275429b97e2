package mainboilerplate

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/metrics"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal" description:"Logging level"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// InitLog configures the logger. |fields| are attached to every event which
// doesn't already carry them, and events are counted into
// metrics.LogEventsTotal by level.
func InitLog(cfg LogConfig, fields log.Fields) {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.AddHook(eventHook{fields: fields, events: metrics.LogEventsTotal})

	if lvl, err := log.ParseLevel(cfg.Level); err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	} else {
		log.SetLevel(lvl)
	}
}

// eventHook decorates and counts logged events.
type eventHook struct {
	fields log.Fields
	events *prometheus.CounterVec
}

func (eventHook) Levels() []log.Level { return log.AllLevels }

func (h eventHook) Fire(e *log.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	h.events.WithLabelValues(e.Level.String()).Inc()
	return nil
}
