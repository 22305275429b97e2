// Package keepalive enables TCP keep-alives on accepted and dialed
// connections, so that connections of vanished peers are eventually closed.
package keepalive

import (
	"context"
	"net"
	"time"
)

// Period of keep-alive probes of accepted connections.
const Period = 3 * time.Minute

// Dialer of outbound connections, matching http.DefaultTransport.
var Dialer = &net.Dialer{
	Timeout:   30 * time.Second,
	KeepAlive: 30 * time.Second,
}

// DialerFunc dials TCP |addr| with |ctx| using Dialer.
func DialerFunc(ctx context.Context, addr string) (net.Conn, error) {
	return Dialer.DialContext(ctx, "tcp", addr)
}

// TCPListener sets keep-alive options on accepted connections.
type TCPListener struct {
	*net.TCPListener
}

// Accept a connection, enabling keep-alive probes at Period.
func (ln TCPListener) Accept() (net.Conn, error) {
	var tc, err = ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if err = tc.SetKeepAlive(true); err == nil {
		err = tc.SetKeepAlivePeriod(Period)
	}
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	return tc, nil
}
