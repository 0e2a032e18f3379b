package websocket

import "errors"

// Frame-level errors (RFC 6455 Section 5).
var (
	// ErrInvalidOpcode indicates an unknown or reserved opcode.
	ErrInvalidOpcode = errors.New("websocket: invalid opcode")

	// ErrControlFragmented indicates a control frame with FIN=0.
	ErrControlFragmented = errors.New("websocket: control frame must not be fragmented")

	// ErrControlTooLarge indicates a control frame payload > 125 bytes.
	ErrControlTooLarge = errors.New("websocket: control frame payload too large")

	// ErrFrameTooLarge indicates a frame payload beyond the aggregate
	// message limit configured in Params.MaxMessageLength.
	ErrFrameTooLarge = errors.New("websocket: frame payload too large")

	// ErrMaskMismatch indicates a client frame arrived unmasked, or a
	// server frame arrived masked (RFC 6455 Section 5.1/5.3).
	ErrMaskMismatch = errors.New("websocket: mask direction mismatch")

	// ErrUnexpectedContinuation indicates a CONTINUATION frame with no
	// data message currently in progress.
	ErrUnexpectedContinuation = errors.New("websocket: unexpected continuation frame")

	// ErrMessageInProgress indicates a TEXT/BINARY frame arrived while a
	// prior data message has not yet been terminated by FIN.
	ErrMessageInProgress = errors.New("websocket: data message already in progress")

	// ErrUnexpectedPong indicates a PONG whose payload does not match an
	// outstanding PING, or no PING is outstanding.
	ErrUnexpectedPong = errors.New("websocket: unexpected pong")

	// ErrReservedBits indicates RSV1/RSV2/RSV3 bits are set. Since this
	// library negotiates no extensions, any set reserved bit closes the
	// connection with UnsupportedExtension.
	ErrReservedBits = errors.New("websocket: reserved bits set without a negotiated extension")

	// ErrInvalidUTF8 indicates a TEXT message is not valid UTF-8. (An
	// invalid close reason is reported as ProtocolError instead.)
	ErrInvalidUTF8 = errors.New("websocket: invalid UTF-8")

	// Handshake errors (RFC 6455 Section 4).

	// ErrInvalidMethod indicates the handshake request method was not GET.
	ErrInvalidMethod = errors.New("websocket: method must be GET")

	// ErrMissingUpgrade indicates a missing or invalid Upgrade header.
	ErrMissingUpgrade = errors.New("websocket: missing or invalid Upgrade header")

	// ErrMissingConnection indicates a missing or invalid Connection header.
	ErrMissingConnection = errors.New("websocket: missing or invalid Connection header")

	// ErrMissingSecKey indicates a missing Sec-WebSocket-Key header.
	ErrMissingSecKey = errors.New("websocket: missing Sec-WebSocket-Key header")

	// ErrInvalidVersion indicates an unsupported Sec-WebSocket-Version.
	ErrInvalidVersion = errors.New("websocket: unsupported WebSocket version")

	// ErrSubprotocolMismatch is returned by the server side of the
	// handshake when the client offered subprotocols none of which the
	// server supports. A client rejecting the server's choice returns
	// ErrHandshakeFailed instead.
	ErrSubprotocolMismatch = errors.New("websocket: no matching subprotocol")

	// ErrHandshakeFailed is returned by Endpoint.Connect and wraps the
	// underlying reason the opening handshake was rejected.
	ErrHandshakeFailed = errors.New("websocket: opening handshake failed")

	// ErrHeaderTooLong indicates a handshake header line exceeded the
	// codec's line-length ceiling.
	ErrHeaderTooLong = errors.New("websocket: header line too long")

	// ErrMalformedHeader indicates a handshake header block could not be
	// parsed (missing start line, missing terminating blank line, or a
	// header line with no colon).
	ErrMalformedHeader = errors.New("websocket: malformed header block")

	// Connection runtime errors.

	// ErrClosed indicates an operation was attempted on a connection that
	// is not OPEN (close already sent or received).
	ErrClosed = errors.New("websocket: connection closed")

	// ErrMessageTooLarge indicates an inbound reassembled message would
	// exceed Params.MaxMessageLength.
	ErrMessageTooLarge = errors.New("websocket: message too large")

	// ErrAcceptorClosed indicates an operation was attempted on an
	// Acceptor that has been closed or interrupted.
	ErrAcceptorClosed = errors.New("websocket: acceptor closed")

	// ErrEndpointClosed indicates Endpoint.Connect or Endpoint.Listen was
	// called after CloseAll.
	ErrEndpointClosed = errors.New("websocket: endpoint closed")

	// ErrUnsupportedScheme indicates a URI scheme other than ws/wss.
	ErrUnsupportedScheme = errors.New("websocket: unsupported URI scheme")

	// ErrMissingHost indicates a URI with no host component.
	ErrMissingHost = errors.New("websocket: URI has no host")
)
