package transport

import (
	"fmt"
	"net"
)

// Listener accepts framed connections, applying the same options to every
// accepted Conn.
type Listener struct {
	settings
	nl   net.Listener
	opts []Option
}

// Listen announces on addr and returns a Listener. The options are stored
// and applied to each accepted connection.
func Listen(network, addr string, opts ...Option) (*Listener, error) {
	nl, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	l := &Listener{settings: defaultSettings(), nl: nl, opts: opts}
	for _, opt := range opts {
		opt(&l.settings)
	}
	return l, nil
}

// Accept waits for the next connection.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.nl.Accept()
	if err != nil {
		return nil, err
	}
	l.log.Debug().Stringer("remote", nc.RemoteAddr()).Msg("accepted connection")
	return NewConn(nc, l.opts...), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// Close stops the listener. Accepted connections stay open.
func (l *Listener) Close() error {
	return l.nl.Close()
}
