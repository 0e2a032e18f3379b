package websocket

import "crypto/tls"

// ServerIdentityLoader supplies the certificate chain and key an
// Acceptor presents to clients. Loading key material from disk, a
// secrets manager, or an ACME client is the caller's job; this
// interface only names the seam so Params.TLSConfig can be built
// without the library ever touching a keystore path itself (the
// original implementation loaded a Java KeyStore by path; this library
// asks the caller to hand over a ready *tls.Config instead).
type ServerIdentityLoader interface {
	// LoadServerConfig returns a *tls.Config with Certificates
	// populated, suitable for an Acceptor's listening socket.
	LoadServerConfig() (*tls.Config, error)
}

// ClientTrustLoader supplies the root CA pool an Endpoint uses to
// verify a server's certificate when dialing wss://.
type ClientTrustLoader interface {
	// LoadClientConfig returns a *tls.Config with RootCAs populated,
	// suitable for Endpoint.Connect.
	LoadClientConfig() (*tls.Config, error)
}

// ServerIdentityFunc adapts a plain function to ServerIdentityLoader.
type ServerIdentityFunc func() (*tls.Config, error)

// LoadServerConfig implements ServerIdentityLoader.
func (f ServerIdentityFunc) LoadServerConfig() (*tls.Config, error) { return f() }

// ClientTrustFunc adapts a plain function to ClientTrustLoader.
type ClientTrustFunc func() (*tls.Config, error)

// LoadClientConfig implements ClientTrustLoader.
func (f ClientTrustFunc) LoadClientConfig() (*tls.Config, error) { return f() }
