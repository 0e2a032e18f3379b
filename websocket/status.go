package websocket

import "fmt"

// CloseCode is a WebSocket close status code (RFC 6455 Section 7.4).
type CloseCode uint16

// Reserved close codes named in RFC 6455 Section 7.4.1 and used by this
// library. StatusOpen (0) never appears on the wire; it is the
// in-memory marker for an OPEN connection. Before the handshake
// completes a Conn's status code is ProtocolError, not StatusOpen, so a
// connection whose handshake fails already reports ProtocolError.
const (
	StatusOpen           CloseCode = 0
	NormalClosure        CloseCode = 1000
	GoingAway            CloseCode = 1001
	ProtocolError        CloseCode = 1002
	UnsupportedData      CloseCode = 1003
	NoStatus             CloseCode = 1005 // never sent on the wire, only synthesized locally
	AbnormalClosure      CloseCode = 1006 // never sent on the wire, only synthesized locally
	MessageTooBig        CloseCode = 1009
	UnsupportedExtension CloseCode = 1010
	InternalError        CloseCode = 1011
)

// maxCloseCode is the top of the range an application may specify for
// Conn.Close; codes outside [1000,4999] are clamped to NoStatus (P4).
const maxCloseCode = 4999

// clampCloseCode implements P4: any application-supplied code outside
// [1000,4999] is replaced with NoStatus, and by convention the reason
// that traveled with it is dropped by the caller (see Conn.Close).
func clampCloseCode(code CloseCode) CloseCode {
	if code < 1000 || code > maxCloseCode {
		return NoStatus
	}
	return code
}

// maxCloseReasonBytes is RFC 6455's implicit reason-length ceiling: a
// close frame's payload is 2 bytes of code plus reason, and control
// frames cap out at 125 bytes total.
const maxCloseReasonBytes = maxControlPayload - 2

// truncateCloseReason truncates reason to maxCloseReasonBytes, exactly
// as the original implementation does: a byte-exact cut that can split
// a multi-byte UTF-8 sequence in half. Wire-level length is the only
// contract callers depend on (P5), so no rune-boundary fixup is applied.
func truncateCloseReason(reason string) string {
	if len(reason) <= maxCloseReasonBytes {
		return reason
	}
	return reason[:maxCloseReasonBytes]
}

// Status is a snapshot of a connection's terminal or in-progress close
// state: {code, reason, remotely, wasClean, error}.
type Status struct {
	// Code is the close code. StatusOpen while the connection is OPEN;
	// it takes the close code as soon as a CLOSE is sent or received or
	// an error ends the connection, before the socket has finished
	// closing.
	Code CloseCode

	// Reason is the UTF-8 close reason, at most maxCloseReasonBytes.
	Reason string

	// Remotely is true if the peer initiated the close (sent the first
	// CLOSE frame). It is false for a failed opening handshake.
	Remotely bool

	// WasClean is true if both sides exchanged CLOSE frames in an
	// orderly fashion. False for timeouts, socket loss, or a
	// force-closed connection.
	WasClean bool

	// Error is the error that provoked the close, if any.
	Error error
}

func (s Status) String() string {
	return fmt.Sprintf("websocket status{code=%d remotely=%t wasClean=%t reason=%q}",
		s.Code, s.Remotely, s.WasClean, s.Reason)
}
