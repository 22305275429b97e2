// Package server binds a single TCP socket which serves both RESP clients
// of a host.Server and HTTP diagnostics, multiplexed by CMux.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/soheilhy/cmux"
	"github.com/tidwall/redcon"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/keepalive"
	"go.gazette.dev/sqlkv/task"
)

// Server bundles RESP & HTTP servers, multiplexed over a single bound TCP
// socket (using CMux).
type Server struct {
	// RawListener is the bound TCP listener of the Server.
	RawListener *net.TCPListener
	// CMux wraps RawListener to provide connection protocol multiplexing over
	// a single bound socket.
	CMux cmux.CMux
	// HTTPListener is a CMux Listener for HTTP connections.
	HTTPListener net.Listener
	// RESPListener is a CMux Listener for all other connections, which are
	// assumed to speak RESP.
	RESPListener net.Listener
	// HTTPMux is the http.ServeMux which is served by QueueTasks.
	HTTPMux *http.ServeMux
	// RESPServer serves RESPListener, dispatching commands to a host.Server.
	RESPServer *redcon.Server
	// Ctx is cancelled when the Server is stopping.
	Ctx context.Context

	cancel context.CancelFunc
}

// New builds and returns a Server of the given TCP network interface |iface|
// and |port|, which dispatches RESP commands to |srv|. |port| may be zero,
// in which case a random free port is assigned.
func New(iface string, port uint16, srv *host.Server) (*Server, error) {
	var addr = fmt.Sprintf("%s:%d", iface, port)

	var raw, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind service address (%s)", addr)
	}
	var ctx, cancel = context.WithCancel(context.Background())

	var s = &Server{
		RawListener: raw.(*net.TCPListener),
		HTTPMux:     http.DefaultServeMux,
		Ctx:         ctx,
		cancel:      cancel,
	}
	s.CMux = cmux.New(keepalive.TCPListener{TCPListener: s.RawListener})

	s.CMux.HandleError(func(err error) bool {
		if _, ok := err.(net.Error); !ok {
			log.WithField("err", err).Warn("failed to CMux client connection to a listener")
		}
		return true // Continue serving RawListener.
	})

	// Connections sending HTTP/1 verbs (GET, PUT, POST etc) are assumed to be HTTP.
	s.HTTPListener = s.CMux.Match(cmux.HTTP1Fast())
	s.RESPListener = closedListener{s.CMux.Match(cmux.Any())}

	s.RESPServer = redcon.NewServer(s.RawListener.Addr().String(),
		func(conn redcon.Conn, cmd redcon.Command) { srv.Dispatch(conn, cmd.Args) },
		func(conn redcon.Conn) bool {
			log.WithField("remote", conn.RemoteAddr()).Debug("accepted client")
			return true
		},
		func(conn redcon.Conn, err error) {
			if err != nil && !isClosedErr(err) {
				log.WithFields(log.Fields{"remote": conn.RemoteAddr(), "err": err}).Warn("client connection failed")
			}
		},
	)
	return s, nil
}

// Endpoint of the Server, as a redis:// URL.
func (s *Server) Endpoint() string {
	return "redis://" + s.RawListener.Addr().String()
}

// QueueTasks serving the CMux, HTTP, and RESP component servers onto the
// task.Group. Serving stops when the task.Group is cancelled.
func (s *Server) QueueTasks(tg *task.Group) {
	tg.Queue("CMux.Serve", func() error {
		if err := s.CMux.Serve(); err != nil && s.Ctx.Err() == nil {
			return err
		}
		return nil // Swallow error after stop.
	})
	tg.Queue("http.Serve", func() error {
		if err := http.Serve(s.HTTPListener, s.HTTPMux); err != nil && s.Ctx.Err() == nil {
			return err
		}
		return nil // Swallow error after stop.
	})
	tg.Queue("RESPServer.Serve", func() error {
		if err := s.RESPServer.Serve(s.RESPListener); err != nil && s.Ctx.Err() == nil {
			return err
		}
		return nil
	})
	tg.QueueOnCancel("Server.Stop", s.Stop)
}

// Stop the Server. The bound socket is released, and accepted RESP
// connections are closed as RESPServer exits.
func (s *Server) Stop() {
	// Cancel |s.Ctx| so Serve loops recognize this as a graceful closure.
	s.cancel()

	// Closing RawListener stops CMux, which closes its derived Listeners.
	if err := s.RawListener.Close(); err != nil && !isClosedErr(err) {
		log.WithField("err", err).Warn("closing listener")
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection")
}

// closedListener maps errors of a closed CMux Listener to net.ErrClosed,
// which RESPServer recognizes as the end of serving.
type closedListener struct{ net.Listener }

func (l closedListener) Accept() (net.Conn, error) {
	var conn, err = l.Listener.Accept()
	if err == cmux.ErrListenerClosed || err == cmux.ErrServerClosed {
		return nil, errors.WithMessage(net.ErrClosed, err.Error())
	}
	return conn, err
}
