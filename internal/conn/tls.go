package conn

import (
	"crypto/tls"

	"github.com/zeushttp/zeushttp/internal/tlsdriver"
)

// TLSState holds the TLS session for an encrypted connection, plus the
// ALPN-driven protocol decision spec.md section 9 requires be made in
// exactly one place once the handshake completes.
type TLSState struct {
	Session *tlsdriver.Session
}

// NewTLSState wraps cfg in a fresh, not-yet-handshaked session.
func NewTLSState(cfg *tls.Config) *TLSState {
	return &TLSState{Session: tlsdriver.NewSession(cfg)}
}

// SelectProtocol inspects the single post-handshake ALPN result and
// returns which engine this connection should run.
func (t *TLSState) SelectProtocol() Protocol {
	switch t.Session.NegotiatedProtocol() {
	case "h2":
		return ProtocolHTTP2
	default:
		return ProtocolHTTP1
	}
}
