package websocket

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// pingPayload is the fixed probe payload sent on an idle read timeout
// when PingEnabled is set (RFC 6455 places no requirement on the
// content; this library uses a recognizable literal for traceability).
const pingPayload = "PingPong"

// Conn is one WebSocket connection, client- or server-side. Its
// lifecycle is driven entirely by a single reader-loop goroutine
// started by the Endpoint or Acceptor that created it; application code
// only calls Send*/Close/introspection methods and implements
// ConnHandler.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer

	isServerSide bool // true: this side accepted the TCP connection
	isSecure     bool
	params       Params

	handlerMu sync.Mutex
	handler   ConnHandler

	subprotocol string
	requestURI  *url.URL

	registry *connRegistry // owning Endpoint's or Acceptor's registry

	logger *slog.Logger

	// handshake, when non-nil, is run by run() before the connection is
	// considered open. A nil handshake means the caller already
	// established c's protocol state (used by tests that drive the
	// frame-level protocol directly).
	handshake func() (*handshakeResult, error)

	// handshakeDone, when non-nil, receives the handshake's outcome
	// exactly once (nil on success), letting Endpoint.Connect return
	// synchronously while OnError/OnClose still fire from inside run()
	// on failure, ahead of the value landing on this channel.
	handshakeDone chan error

	writeMu sync.Mutex

	statusMu  sync.Mutex // serializes every read-modify-write of statusPtr
	statusPtr atomic.Pointer[Status]

	closeOnce   sync.Once
	forceTimer  atomic.Pointer[time.Timer]
	pingSent    bool
	dataOpcode  byte // 0 when no message reassembly is in progress
	closeSignal chan struct{}
}

func newConn(netConn net.Conn, isServerSide, isSecure bool, params Params, handler ConnHandler, registry *connRegistry) *Conn {
	c := &Conn{
		netConn:      netConn,
		br:           bufio.NewReader(netConn),
		bw:           bufio.NewWriter(netConn),
		isServerSide: isServerSide,
		isSecure:     isSecure,
		params:       params.withDefaults(),
		handler:      handler,
		registry:     registry,
		logger:       slog.Default(),
		closeSignal:  make(chan struct{}),
	}
	// Not-yet-open: any panic or handshake failure before run marks the
	// connection open leaves a sensible close code, matching the original
	// state machine.
	c.statusPtr.Store(&Status{Code: ProtocolError})
	return c
}

// updateStatus applies mutate to a copy of the current status and
// installs the result, holding statusMu across the whole read-modify-
// write so a concurrent transition (the reader loop's handlePeerClose
// racing the application's Close) can never interleave with this one
// and lose an update. mutate must not block or call back into Conn.
func (c *Conn) updateStatus(mutate func(*Status)) Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	next := *c.statusPtr.Load()
	mutate(&next)
	c.statusPtr.Store(&next)
	return next
}

// currentHandler returns the handler under lock, so SetHandler can swap
// it safely while the reader loop is mid-dispatch.
func (c *Conn) currentHandler() ConnHandler {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	return c.handler
}

// SetHandler swaps the active handler. If the connection is currently
// OPEN, the outgoing handler receives a synthetic OnClose and the
// incoming handler receives a synthetic OnOpen; the connection itself
// stays open and its socket state is untouched.
func (c *Conn) SetHandler(h ConnHandler) {
	c.handlerMu.Lock()
	old := c.handler
	c.handler = h
	open := c.Status().Code == StatusOpen
	c.handlerMu.Unlock()

	if open {
		old.OnClose(c, *c.Status())
		h.OnOpen(c, c.subprotocol)
	}
}

// Status returns a snapshot of the connection's close state.
func (c *Conn) Status() *Status {
	return c.statusPtr.Load()
}

// IsOpen reports whether the connection can still send data.
func (c *Conn) IsOpen() bool {
	return c.Status().Code == StatusOpen
}

// IsSecure reports whether this connection runs over TLS.
func (c *Conn) IsSecure() bool { return c.isSecure }

// IsClientSide reports whether this side dialed out (true) or accepted
// the TCP connection (false).
func (c *Conn) IsClientSide() bool { return !c.isServerSide }

// Subprotocol returns the negotiated subprotocol, or "" if none.
func (c *Conn) Subprotocol() string { return c.subprotocol }

// PeerHost returns the remote host, or "" if it cannot be determined.
func (c *Conn) PeerHost() string {
	if !c.isServerSide && c.requestURI != nil {
		return c.requestURI.Hostname()
	}
	if host, _, err := net.SplitHostPort(c.netConn.RemoteAddr().String()); err == nil {
		return host
	}
	return ""
}

// Port returns the remote port.
func (c *Conn) Port() int {
	if _, port, err := net.SplitHostPort(c.netConn.RemoteAddr().String()); err == nil {
		var p int
		fmt.Sscanf(port, "%d", &p)
		return p
	}
	return 0
}

// Path returns the HTTP request path negotiated during the handshake.
func (c *Conn) Path() string {
	if c.requestURI == nil {
		return ""
	}
	return c.requestURI.Path
}

// Query returns the HTTP request query negotiated during the handshake.
func (c *Conn) Query() string {
	if c.requestURI == nil {
		return ""
	}
	return c.requestURI.RawQuery
}

// ListConnections returns the peer connections registered on the same
// Endpoint (client side) or Acceptor (server side) as c, c included.
func (c *Conn) ListConnections() []*Conn {
	if c.registry == nil {
		return nil
	}
	return c.registry.snapshot()
}

// run drives the connection to completion: it runs the opening
// handshake if one was set, delivers OnOpen, services the reader loop
// until the connection closes, then delivers OnClose. Called on its own
// goroutine by the Endpoint or Acceptor that created c.
//
// A failed handshake never delivers OnOpen: it goes straight to OnError
// then OnClose with the connection's pre-seeded PROTOCOL_ERROR status,
// matching the original implementation, which runs the handshake inside
// its connection goroutine and funnels a handshake exception through the
// same error/close path as any other protocol violation.
func (c *Conn) run() {
	if c.handshake != nil {
		result, err := c.handshake()
		if err != nil {
			c.failHandshake(err)
			if c.handshakeDone != nil {
				c.handshakeDone <- err
			}
			return
		}
		c.subprotocol = result.subprotocol
		c.requestURI = result.requestURI
	}

	if c.registry != nil {
		c.registry.add(c)
		defer c.registry.remove(c)
	}

	c.updateStatus(func(s *Status) { *s = Status{Code: StatusOpen} })
	if c.handshakeDone != nil {
		c.handshakeDone <- nil
	}
	c.currentHandler().OnOpen(c, c.subprotocol)

	for {
		f, closed, err := c.nextMessageFrame()
		if err != nil {
			c.closeDueTo(closeCodeForError(err), err)
			break
		}
		if closed {
			break
		}
		mr := newMessageReader(c, f)
		isText := f.opcode == opcodeText
		c.currentHandler().OnMessage(c, mr, isText)
		if derr := mr.drain(); derr != nil {
			c.closeDueTo(closeCodeForError(derr), derr)
			break
		}
	}

	c.closeSocket()

	final := c.Status()
	if final.Error != nil {
		c.currentHandler().OnError(c, final.Error)
	}
	c.currentHandler().OnClose(c, *final)
	close(c.closeSignal)
}

// Done returns a channel that is closed once the connection has fully
// closed and OnClose has returned.
func (c *Conn) Done() <-chan struct{} {
	return c.closeSignal
}

// failHandshake tears down a connection whose opening handshake was
// rejected. c.subprotocol/c.requestURI are never set, OnOpen is never
// called, and c is never added to a registry: it was never a live
// connection. The status left by newConn (PROTOCOL_ERROR, remotely
// false) is reported as-is, with err attached, matching §7's mapping of
// a failed handshake to PROTOCOL_ERROR.
func (c *Conn) failHandshake(err error) {
	final := c.updateStatus(func(s *Status) { s.Error = err })
	c.closeSocket()
	c.logger.Warn("websocket: handshake rejected", "remote", c.netConn.RemoteAddr(), "error", err)
	c.currentHandler().OnError(c, err)
	c.currentHandler().OnClose(c, final)
	close(c.closeSignal)
}

// nextMessageFrame reads and internally dispatches frames (PING/PONG,
// CLOSE, RSV/opcode validation, idle-timeout ping probing) until either
// a frame starting or continuing a data message is available, or the
// closing handshake completes.
func (c *Conn) nextMessageFrame() (f *frame, closed bool, err error) {
	for {
		if c.params.IdleTimeout > 0 {
			if err := c.netConn.SetReadDeadline(time.Now().Add(c.params.IdleTimeout)); err != nil {
				return nil, false, err
			}
		}

		rf, rerr := readFrame(c.br, c.isServerSide, c.remainingBudget())
		if rerr != nil {
			if isTimeoutErr(rerr) {
				if c.params.PingEnabled && !c.pingSent {
					c.pingSent = true
					if werr := c.writeControlFrame(opcodePing, []byte(pingPayload)); werr != nil {
						return nil, false, werr
					}
					continue
				}
				return nil, false, fmt.Errorf("%w: idle timeout", ErrClosed)
			}
			return nil, false, rerr
		}

		if rf.rsv1 || rf.rsv2 || rf.rsv3 {
			return nil, false, ErrReservedBits
		}

		switch rf.opcode {
		case opcodePing:
			if err := c.writeControlFrame(opcodePong, rf.payload); err != nil {
				return nil, false, err
			}
		case opcodePong:
			if !c.pingSent || !bytes.Equal(rf.payload, []byte(pingPayload)) {
				return nil, false, ErrUnexpectedPong
			}
			c.pingSent = false
		case opcodeClose:
			c.handlePeerClose(rf.payload)
			return nil, true, nil
		case opcodeContinuation:
			if c.dataOpcode == 0 {
				return nil, false, ErrUnexpectedContinuation
			}
			return rf, false, nil
		case opcodeText, opcodeBinary:
			if c.dataOpcode != 0 {
				return nil, false, ErrMessageInProgress
			}
			c.dataOpcode = rf.opcode
			return rf, false, nil
		default:
			return nil, false, ErrInvalidOpcode
		}
	}
}

// remainingBudget returns the per-frame payload ceiling passed to
// readFrame: MaxMessageLength, or -1 (unbounded) if MaxMessageLength is
// unset. It does not subtract what earlier fragments of the current
// message have already consumed.
//
// Tracking exact aggregate consumption across fragments is the
// responsibility of MessageReader; here readFrame is only asked to
// reject any single frame that alone already exceeds the configured
// ceiling, which is enough to stop a hostile single oversized frame
// before it is ever allocated.
func (c *Conn) remainingBudget() int64 {
	if c.params.MaxMessageLength <= 0 {
		return -1
	}
	return c.params.MaxMessageLength
}

// handlePeerClose implements the receiving side of the closing
// handshake (§4.4). If this is the first CLOSE seen, it echoes the
// frame back and records the peer's code/reason; wasClean is always set
// because the handshake completed in an orderly fashion.
func (c *Conn) handlePeerClose(payload []byte) {
	code := NoStatus
	reason := ""
	if len(payload) >= 2 {
		code = CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
		reason = string(payload[2:])
		if !utf8.ValidString(reason) {
			// RFC 6455 Section 7.1.6: an invalid close reason is a
			// protocol violation, not merely an advisory oddity.
			code = ProtocolError
			reason = ""
		}
	}

	var echo bool
	c.updateStatus(func(s *Status) {
		if s.Code == StatusOpen {
			echo = true
			*s = Status{Code: code, Reason: reason, Remotely: true, WasClean: true}
		} else {
			s.WasClean = true
		}
	})
	if echo {
		_ = c.writeControlFrame(opcodeClose, payload)
	}
}

// Close implements the local side of the closing handshake (§4.4, P4,
// P5). It is a no-op unless the connection is currently OPEN. code
// outside [1000,4999] is clamped to NoStatus and sent with an empty
// payload; reason is truncated to 123 bytes, so with the 2-byte code
// the payload stays within 125 bytes. A forced socket close is scheduled after HandshakeTimeout in
// case the peer never echoes CLOSE (Design Notes scenario 6).
func (c *Conn) Close(code CloseCode, reason string) {
	var (
		open       bool
		sendCode   CloseCode
		sentReason string
		payload    []byte
	)
	c.updateStatus(func(s *Status) {
		if s.Code != StatusOpen {
			return
		}
		open = true
		sendCode = clampCloseCode(code)
		if sendCode != NoStatus {
			sentReason = truncateCloseReason(reason)
			payload = make([]byte, 2+len(sentReason))
			payload[0] = byte(sendCode >> 8)
			payload[1] = byte(sendCode)
			copy(payload[2:], sentReason)
		}
		*s = Status{Code: sendCode, Reason: sentReason, Remotely: false, WasClean: false, Error: s.Error}
	})
	if !open {
		return
	}

	if writeErr := c.writeControlFrame(opcodeClose, payload); writeErr != nil {
		c.updateStatus(func(s *Status) { s.Error = writeErr })
	}

	c.closeOnce.Do(func() {
		c.forceTimer.Store(time.AfterFunc(c.params.HandshakeTimeout, func() {
			c.logger.Warn("websocket: peer did not echo CLOSE, forcing socket close", "remote", c.netConn.RemoteAddr())
			c.closeSocket()
		}))
	})
}

// closeDueTo records err as the reason for closing (if none is set
// yet) and runs the local close protocol with the given code.
// AbnormalClosure is only recorded locally: no CLOSE frame carries it.
func (c *Conn) closeDueTo(code CloseCode, err error) {
	if code == AbnormalClosure {
		c.updateStatus(func(s *Status) {
			if s.Code == StatusOpen {
				*s = Status{Code: AbnormalClosure, Error: err}
			}
		})
		return
	}
	c.updateStatus(func(s *Status) {
		if s.Code == StatusOpen && s.Error == nil {
			s.Error = err
		}
	})
	c.Close(code, "")
}

// closeSocket closes the underlying network connection. Safe to call
// more than once.
func (c *Conn) closeSocket() {
	if t := c.forceTimer.Load(); t != nil {
		t.Stop()
	}
	_ = c.netConn.Close()
}

// writeControlFrame sends a PING/PONG/CLOSE frame under the write lock.
func (c *Conn) writeControlFrame(opcode byte, payload []byte) error {
	return c.writeFrameLocked(&frame{fin: true, opcode: opcode, masked: !c.isServerSide, payload: payload})
}

// writeFrameLocked serializes with any other writer on this connection
// (§4.6) and translates a write failure into ABNORMAL_CLOSURE.
func (c *Conn) writeFrameLocked(f *frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.Status().Code != StatusOpen && f.opcode != opcodeClose {
		return ErrClosed
	}

	if err := writeFrame(c.bw, f); err != nil {
		c.updateStatus(func(s *Status) {
			s.Code = AbnormalClosure
			s.Error = err
		})
		return err
	}
	return nil
}

// Send writes data as a single logical message, fragmenting it into
// frames of at most Params.PayloadBufferLength (§4.6). isText selects
// opcode TEXT vs BINARY.
func (c *Conn) Send(data []byte, isText bool) error {
	return c.SendReader(bytes.NewReader(data), isText)
}

// SendReader streams r as a single logical message, fragmenting it into
// frames of at most Params.PayloadBufferLength. The final frame is
// always sent with FIN=1, even if r ended exactly on a buffer boundary
// (so the FIN bit is guaranteed to reach the peer for an exact-multiple
// payload, per the original implementation's comment on this case).
func (c *Conn) SendReader(r io.Reader, isText bool) error {
	if !c.IsOpen() {
		return ErrClosed
	}

	opcode := opcodeBinary
	if isText {
		opcode = opcodeText
	}

	buf := make([]byte, c.params.PayloadBufferLength)
	first := true
	for {
		n, rerr := io.ReadFull(r, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return rerr
		}

		fin := rerr == io.EOF || rerr == io.ErrUnexpectedEOF
		op := byte(opcodeContinuation)
		if first {
			op = byte(opcode)
		}

		if err := c.writeFrameLocked(&frame{
			fin:     fin,
			opcode:  op,
			masked:  !c.isServerSide,
			payload: buf[:n],
		}); err != nil {
			return err
		}

		first = false
		if fin {
			return nil
		}
	}
}

// isTimeoutErr reports whether err is a network deadline-exceeded
// error, as opposed to EOF or a protocol error.
func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// closeCodeForError maps an error surfaced by the reader loop to the
// close code the local side reports for it (§7 Error kinds).
func closeCodeForError(err error) CloseCode {
	switch {
	case errors.Is(err, ErrReservedBits):
		return UnsupportedExtension
	case errors.Is(err, ErrFrameTooLarge), errors.Is(err, ErrMessageTooLarge):
		return MessageTooBig
	case errors.Is(err, ErrInvalidUTF8):
		return UnsupportedData
	case errors.Is(err, ErrInvalidOpcode),
		errors.Is(err, ErrControlFragmented),
		errors.Is(err, ErrControlTooLarge),
		errors.Is(err, ErrMaskMismatch),
		errors.Is(err, ErrUnexpectedContinuation),
		errors.Is(err, ErrMessageInProgress),
		errors.Is(err, ErrUnexpectedPong):
		return ProtocolError
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, ErrClosed):
		return AbnormalClosure
	default:
		return InternalError
	}
}
