package mainboilerplate

import (
	petname "github.com/dustinkirkland/golang-petname"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/server"
)

// ServiceConfig represents identification and addressing configuration of the process.
type ServiceConfig struct {
	ID   string `long:"id" env:"ID" description:"Unique ID of this process. Auto-generated if not set"`
	Host string `long:"host" env:"HOST" default:"0.0.0.0" description:"Interface to which the service port is bound"`
	Port uint16 `long:"port" env:"PORT" default:"6380" description:"Service port for RESP and HTTP requests. A random port is used if zero"`
}

// ProcessID returns the configured ID, or a generated pet name if none is set.
func (cfg ServiceConfig) ProcessID() string {
	if cfg.ID != "" {
		return cfg.ID
	}
	return petname.Generate(2, "-")
}

// MustServer binds and returns a server.Server of the ServiceConfig, which
// dispatches RESP commands to |srv|.
func (cfg ServiceConfig) MustServer(srv *host.Server) *server.Server {
	var s, err = server.New(cfg.Host, cfg.Port, srv)
	Must(err, "failed to bind server", "host", cfg.Host, "port", cfg.Port)
	return s
}
