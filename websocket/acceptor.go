package websocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
)

// Acceptor status values (§4.7). acceptorClosed is the zero value so a
// freshly constructed, not-yet-launched Acceptor reports closed.
type acceptorState int32

const (
	acceptorClosed acceptorState = iota
	acceptorOpen
	acceptorInterrupted
)

// Acceptor owns a listening socket and runs the server accept loop:
// bind, accept, hand each socket to a Connection, repeat (§4.7).
type Acceptor struct {
	listener    net.Listener
	isSecure    bool
	params      Params
	connHandler ConnHandler
	handler     AcceptorHandler
	logger      *slog.Logger

	registry *connRegistry

	mu    sync.Mutex
	state acceptorState
	err   error
}

// newAcceptor wraps an already-bound listener. secure indicates params.TLSConfig
// was applied to it by the caller (Endpoint.Listen).
func newAcceptor(l net.Listener, secure bool, params Params, connHandler ConnHandler, h AcceptorHandler, logger *slog.Logger) *Acceptor {
	if h == nil {
		h = noopAcceptorHandler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Acceptor{
		listener:    l,
		isSecure:    secure,
		params:      params.withDefaults(),
		connHandler: connHandler,
		handler:     h,
		logger:      logger,
		registry:    newConnRegistry(),
	}
}

// IsOpen reports whether the accept loop is currently running.
func (a *Acceptor) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == acceptorOpen
}

// IsInterrupted reports whether the accept loop stopped because its
// listening socket was closed via Interrupt, or because Accept failed
// while the loop was open, rather than through Close.
func (a *Acceptor) IsInterrupted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == acceptorInterrupted
}

// Error returns the error that stopped the accept loop, if any.
func (a *Acceptor) Error() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Port returns the bound local port.
func (a *Acceptor) Port() int {
	if tcpAddr, ok := a.listener.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// BindAddress returns the bound local address.
func (a *Acceptor) BindAddress() net.Addr {
	return a.listener.Addr()
}

// ListConnections returns the connections currently accepted by a.
func (a *Acceptor) ListConnections() []*Conn {
	return a.registry.snapshot()
}

// run is the accept loop; launched on its own goroutine by Endpoint.Listen.
func (a *Acceptor) run() {
	a.mu.Lock()
	a.state = acceptorOpen
	a.mu.Unlock()

	a.handler.OnStart(a)

	for a.IsOpen() {
		rawConn, err := a.listener.Accept()
		if err != nil {
			a.mu.Lock()
			stillOpen := a.state == acceptorOpen
			if stillOpen {
				a.err = err
				a.state = acceptorInterrupted
			}
			a.mu.Unlock()
			if stillOpen {
				a.logger.Warn("websocket: accept failed", "error", err)
			}
			break
		}

		c := newConn(rawConn, true, a.isSecure, a.params, a.connHandler, a.registry)
		if !a.handler.OnAccept(a, c) {
			_ = rawConn.Close()
			continue
		}
		go a.acceptOne(c)
	}

	a.handler.OnStop(a, a.Error())
}

// acceptOne runs the opening handshake for a newly accepted socket
// through c's own connection lifecycle and, on success, services it
// until it closes. A failed handshake never reaches OnOpen (§6), but
// still delivers OnError/OnClose through c.run's handshake path (§4.4).
func (a *Acceptor) acceptOne(c *Conn) {
	c.logger = a.logger
	c.handshake = func() (*handshakeResult, error) {
		rw := bufio.NewReadWriter(c.br, c.bw)
		return performServerAccept(rw, a.params, a.params.UserAgent)
	}
	c.run()
}

// Close forces the listening socket shut and propagates a GOING_AWAY
// close to every connection currently registered (§4.7). Returns
// ErrAcceptorClosed if a is already closed; on an interrupted Acceptor
// it still closes the connections that Interrupt left running.
func (a *Acceptor) Close(reason string) error {
	a.mu.Lock()
	if a.state == acceptorClosed {
		a.mu.Unlock()
		return ErrAcceptorClosed
	}
	a.state = acceptorClosed
	a.mu.Unlock()

	_ = a.listener.Close()
	a.registry.closeAll(GoingAway, reason)
	return nil
}

// Interrupt closes only the listening socket, leaving any already
// accepted connections undisturbed. Returns ErrAcceptorClosed if a is
// already closed or interrupted.
func (a *Acceptor) Interrupt() error {
	a.mu.Lock()
	if a.state != acceptorOpen {
		a.mu.Unlock()
		return ErrAcceptorClosed
	}
	a.state = acceptorInterrupted
	a.mu.Unlock()

	_ = a.listener.Close()
	return nil
}

type noopAcceptorHandler struct{}

func (noopAcceptorHandler) OnStart(*Acceptor)              {}
func (noopAcceptorHandler) OnAccept(*Acceptor, *Conn) bool { return true }
func (noopAcceptorHandler) OnStop(*Acceptor, error)        {}

// listenTCP binds a TCP listener on addr with SO_REUSEADDR set (§4.8),
// wrapping it in TLS when tlsConfig is non-nil.
func listenTCP(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Listener, error) {
	lc := net.ListenConfig{Control: setReuseAddr}
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		return tls.NewListener(l, tlsConfig), nil
	}
	return l, nil
}
