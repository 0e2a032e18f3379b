package websocket

import (
	"crypto/tls"
	"time"
)

// Defaults applied by DefaultParams. Mirrors the original library's
// handshake/idle timeouts and payload buffer sizing.
const (
	defaultHandshakeTimeout  = 5 * time.Second
	defaultConnectionTimeout = 60 * time.Second
	defaultPayloadBuffer     = 32 * 1024
	defaultMaxMessageLength  = 32 * 1024 * 1024
)

// Params configures a Connection, Acceptor, or Endpoint. The zero value
// is not directly usable; construct with DefaultParams and override.
type Params struct {
	// Subprotocols lists the application subprotocols offered (client
	// role) or accepted (server role), in preference order. Nil means
	// no subprotocol is negotiated.
	Subprotocols []string

	// HandshakeTimeout bounds the opening handshake and doubles as the
	// grace period a locally-initiated close waits for the peer's
	// echoing CLOSE frame before the connection is force-closed.
	HandshakeTimeout time.Duration

	// IdleTimeout is the read deadline applied to the connection once
	// the handshake completes. A read that times out with PingEnabled
	// set triggers a PING probe instead of an immediate abnormal close;
	// see Design Notes scenario 5.
	IdleTimeout time.Duration

	// PingEnabled, when true, sends a PING with payload "PingPong" on
	// the first idle timeout instead of closing abnormally. A second
	// consecutive idle timeout while that PING is outstanding closes
	// with AbnormalClosure.
	PingEnabled bool

	// PayloadBufferLength is the maximum payload of a single outbound
	// data frame; sending a larger message fragments it into frames of
	// at most this size. It has no bearing on inbound reassembly.
	PayloadBufferLength int

	// MaxMessageLength bounds an inbound reassembled message; exceeding
	// it aborts the message and closes with MessageTooBig.
	MaxMessageLength int64

	// TLSConfig, if non-nil, makes the endpoint or acceptor speak TLS.
	// Loading certificates/trust roots into it is the caller's
	// responsibility (see ServerIdentityLoader/ClientTrustLoader).
	TLSConfig *tls.Config

	// UserAgent is sent as the client's User-Agent header and the
	// server's Server header during the handshake.
	UserAgent string
}

// DefaultParams returns Params with the library's default timeouts and
// buffer sizes, matching the original implementation's constructor
// defaults.
func DefaultParams() Params {
	return Params{
		HandshakeTimeout:    defaultHandshakeTimeout,
		IdleTimeout:         defaultConnectionTimeout,
		PingEnabled:         true,
		PayloadBufferLength: defaultPayloadBuffer,
		MaxMessageLength:    defaultMaxMessageLength,
		UserAgent:           "go-websocket",
	}
}

// withDefaults fills the zero-valued timeout, buffer-size and UserAgent
// fields of p from DefaultParams, used so callers may supply a
// partially-populated Params. PingEnabled, Subprotocols and TLSConfig
// are kept as given.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.HandshakeTimeout <= 0 {
		p.HandshakeTimeout = d.HandshakeTimeout
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = d.IdleTimeout
	}
	if p.PayloadBufferLength <= 0 {
		p.PayloadBufferLength = d.PayloadBufferLength
	}
	if p.MaxMessageLength <= 0 {
		p.MaxMessageLength = d.MaxMessageLength
	}
	if p.UserAgent == "" {
		p.UserAgent = d.UserAgent
	}
	return p
}
