package websocket

// ConnHandler receives the lifecycle and message events of one
// Connection. Implementations must not block for long inside OnMessage:
// the reader loop that invokes it is also what services pings and the
// close protocol.
type ConnHandler interface {
	// OnOpen is called once, after the opening handshake completes and
	// before any message is delivered.
	OnOpen(c *Conn, subprotocol string)

	// OnMessage is called once per received message, with r positioned
	// at the start of the (possibly still-arriving) payload. isText
	// reports whether the message was sent as TEXT or BINARY. The
	// handler must fully drain r, or read from it and return, before
	// the reader loop can proceed to the next frame.
	OnMessage(c *Conn, r *MessageReader, isText bool)

	// OnError is called at most once, only when the connection is
	// closing due to an error rather than an orderly close exchange.
	// It runs immediately before OnClose.
	OnError(c *Conn, err error)

	// OnClose is called exactly once, after the connection has fully
	// closed (both directions of the socket are shut and the reader
	// loop has exited).
	OnClose(c *Conn, status Status)
}

// AcceptorHandler receives the lifecycle events of an Acceptor's accept
// loop.
type AcceptorHandler interface {
	// OnStart is called once the listening socket is bound and the
	// accept loop is about to begin.
	OnStart(a *Acceptor)

	// OnAccept is called for each newly accepted TCP connection, before
	// the opening handshake runs on it. Returning false drops the
	// connection immediately without attempting a handshake.
	OnAccept(a *Acceptor, remote *Conn) bool

	// OnStop is called once the accept loop has exited, whether from
	// Close, Interrupt, or an unrecoverable accept error.
	OnStop(a *Acceptor, err error)
}
