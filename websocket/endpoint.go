package websocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Endpoint is the facade applications use to dial out (Connect) or
// listen (Listen). It optionally scopes both to a local bind address,
// and tracks every Connection and Acceptor it created (§4.8).
type Endpoint struct {
	bindAddr net.IP
	logger   *slog.Logger

	serverIdentity ServerIdentityLoader
	clientTrust    ClientTrustLoader

	clientConns *connRegistry

	acceptorsMu sync.Mutex // guards acceptors, the same pattern connRegistry uses for conns
	acceptors   []*Acceptor

	closed atomic.Bool
}

// NewEndpoint returns an Endpoint with no bind-address restriction:
// Connect dials from any local interface and Listen binds all of them.
func NewEndpoint() *Endpoint {
	return &Endpoint{logger: slog.Default(), clientConns: newConnRegistry()}
}

// NewEndpointOnAddress scopes both Connect and Listen to bindAddr, the
// Go equivalent of the original library's WebSocket(InetAddress)
// constructor.
func NewEndpointOnAddress(bindAddr net.IP) *Endpoint {
	return &Endpoint{bindAddr: bindAddr, logger: slog.Default(), clientConns: newConnRegistry()}
}

// WithLogger sets the logger used for lifecycle events (accept errors,
// handshake failures, forced-close firing). Returns e for chaining.
func (e *Endpoint) WithLogger(l *slog.Logger) *Endpoint {
	e.logger = l
	return e
}

// WithServerIdentity sets the loader used to populate Params.TLSConfig
// when Listen is called with secure=true and no TLSConfig was given.
func (e *Endpoint) WithServerIdentity(l ServerIdentityLoader) *Endpoint {
	e.serverIdentity = l
	return e
}

// WithClientTrust sets the loader used to populate Params.TLSConfig
// when Connect dials a wss:// URI with no TLSConfig given.
func (e *Endpoint) WithClientTrust(l ClientTrustLoader) *Endpoint {
	e.clientTrust = l
	return e
}

// ListConnections returns every client-initiated Connection dialed
// through Connect, still registered (i.e. not yet closed and reaped).
func (e *Endpoint) ListConnections() []*Conn {
	return e.clientConns.snapshot()
}

// ListAcceptors returns every Acceptor started through Listen.
func (e *Endpoint) ListAcceptors() []*Acceptor {
	e.acceptorsMu.Lock()
	defer e.acceptorsMu.Unlock()
	out := make([]*Acceptor, len(e.acceptors))
	copy(out, e.acceptors)
	return out
}

// Connect resolves uri (ws:// or wss://, default ports 80/443),
// establishes the TCP connection using HandshakeTimeout as the connect
// deadline, runs the client-side opening handshake, and returns the
// live Connection once its reader loop has started (§4.8).
func (e *Endpoint) Connect(ctx context.Context, rawURL string, handler ConnHandler, params Params) (*Conn, error) {
	if e.closed.Load() {
		return nil, ErrEndpointClosed
	}

	params = params.withDefaults()

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse uri: %w", err)
	}
	if target.Host == "" {
		return nil, ErrMissingHost
	}

	var secure bool
	switch target.Scheme {
	case "ws":
		secure = false
	case "wss":
		secure = true
	default:
		return nil, ErrUnsupportedScheme
	}

	host := target.Hostname()
	port := target.Port()
	if port == "" {
		if secure {
			port = "443"
		} else {
			port = "80"
		}
	}

	dialer := &net.Dialer{Timeout: params.HandshakeTimeout}
	if e.bindAddr != nil {
		dialer.LocalAddr = &net.TCPAddr{IP: e.bindAddr}
	}

	rawConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if secure {
		tlsConfig := params.TLSConfig
		if tlsConfig == nil && e.clientTrust != nil {
			tlsConfig, err = e.clientTrust.LoadClientConfig()
			if err != nil {
				_ = rawConn.Close()
				return nil, fmt.Errorf("load client trust: %w", err)
			}
		}
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: host}
		}
		tlsConn := tls.Client(rawConn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		rawConn = tlsConn
	}

	c := newConn(rawConn, false, secure, params, handler, e.clientConns)
	c.logger = e.logger
	c.handshakeDone = make(chan error, 1)
	c.handshake = func() (*handshakeResult, error) {
		if err := rawConn.SetDeadline(time.Now().Add(params.HandshakeTimeout)); err != nil {
			return nil, err
		}
		defer rawConn.SetDeadline(time.Time{})

		rw := bufio.NewReadWriter(c.br, c.bw)
		result, err := performClientHandshake(rw, target, params, params.UserAgent)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		return result, nil
	}

	// run() delivers OnError/OnClose to handler before the outcome
	// lands on handshakeDone (§4.4, §7), so Connect can still return a
	// synchronous error without the handler ever missing the terminal
	// status of a rejected handshake.
	go c.run()
	if err := <-c.handshakeDone; err != nil {
		return nil, err
	}
	return c, nil
}

// Listen binds a TCP listener on port, wraps it in an Acceptor, and
// starts its accept loop. secure=true wraps the listener in TLS using
// params.TLSConfig or the Endpoint's ServerIdentityLoader (§4.8).
func (e *Endpoint) Listen(ctx context.Context, port int, connHandler ConnHandler, acceptorHandler AcceptorHandler, params Params, secure bool) (*Acceptor, error) {
	if e.closed.Load() {
		return nil, ErrEndpointClosed
	}

	params = params.withDefaults()

	var addr string
	if e.bindAddr != nil {
		addr = net.JoinHostPort(e.bindAddr.String(), portString(port))
	} else {
		addr = net.JoinHostPort("", portString(port))
	}

	tlsConfig := params.TLSConfig
	if secure {
		var err error
		if tlsConfig == nil && e.serverIdentity != nil {
			tlsConfig, err = e.serverIdentity.LoadServerConfig()
			if err != nil {
				return nil, fmt.Errorf("load server identity: %w", err)
			}
		}
		if tlsConfig == nil {
			return nil, fmt.Errorf("websocket: secure listen requires Params.TLSConfig or WithServerIdentity")
		}
	} else {
		tlsConfig = nil
	}

	listener, err := listenTCP(ctx, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	a := newAcceptor(listener, secure, params, connHandler, acceptorHandler, e.logger)
	e.acceptorsMu.Lock()
	e.acceptors = append(e.acceptors, a)
	e.acceptorsMu.Unlock()
	go a.run()
	return a, nil
}

// CloseAll marks e closed, closes every Acceptor started through
// Listen, then every Connection dialed through Connect, with the given
// reason (§4.8). Safe to call concurrently with Connect/Listen: e is
// flagged closed before anything else runs, so any Connect/Listen call
// that hasn't already returned by the time CloseAll starts either
// completes and is torn down here, or observes the flag and fails with
// ErrEndpointClosed instead of establishing a connection nothing will
// ever close.
func (e *Endpoint) CloseAll(reason string) {
	e.closed.Store(true)
	for _, a := range e.ListAcceptors() {
		_ = a.Close(reason)
	}
	e.clientConns.closeAll(GoingAway, reason)
}

func portString(port int) string {
	return fmt.Sprintf("%d", port)
}
