package mainboilerplate

import (
	_ "expvar" // Import for /debug/vars
	"fmt"
	"net/http"
	_ "net/http/pprof" // Import for /debug/pprof
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// DiagnosticsConfig configures pull-based application metrics, debugging and diagnostics.
type DiagnosticsConfig struct {
	MetricsPath string `long:"metrics-path" env:"METRICS_PATH" default:"/debug/metrics" description:"HTTP path at which Prometheus metrics are served"`
}

// InitDiagnosticsAndRecover registers |collectors| and enables serving of
// metrics and debugging services on the default HTTPMux. It also returns a
// closure which should be deferred, which recovers a panic and attempts to
// write a termination message.
func InitDiagnosticsAndRecover(cfg DiagnosticsConfig, collectors ...prometheus.Collector) func() {
	prometheus.MustRegister(collectors...)

	// Package "net/http/pprof" serves /debug/pprof/.
	// Package "expvar" serves /debug/vars

	// Serve a liveness check at /debug/ready.
	http.HandleFunc("/debug/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	http.Handle(cfg.MetricsPath, promhttp.Handler())

	return func() {
		if r := recover(); r != nil {
			// Best effort.
			if f, err := os.OpenFile(terminationLog, os.O_WRONLY, 0777); err == nil {
				fmt.Fprintf(f, "%+v", r)
				f.Close()
			}
			panic(r)
		}
	}
}

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}

// terminationLog is read by container orchestrators as the reason a
// container exited.
const terminationLog = "/dev/termination-log"
