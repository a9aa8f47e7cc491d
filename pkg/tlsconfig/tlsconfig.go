// Package tlsconfig builds the server's crypto/tls.Config: the one
// version/cipher-suite profile zeushttp actually runs, wired into both
// cmd/zeushttpd's loadTLSConfig and zeushttp.go's tlsConfigFromFiles.
// spec.md section 4.2 mandates "TLS 1.2 minimum, ALPN h2/http1.1" and
// nothing configurable below that, so this package no longer carries the
// teacher's full version/cipher scaffolding (Modern/Compatible/Legacy
// profiles, SSL 3.0 and TLS 1.0/1.1 constants, name-lookup helpers) —
// none of it is ever selected by a server that only speaks TLS 1.2+.
package tlsconfig

import "crypto/tls"

const (
	VersionTLS12 uint16 = tls.VersionTLS12
	VersionTLS13 uint16 = tls.VersionTLS13
)

// VersionProfile is a named min/max TLS version range.
type VersionProfile struct {
	Min         uint16
	Max         uint16
	Description string
}

// ProfileSecure is the only profile this server selects: TLS 1.2
// through 1.3, spec.md section 4.2's minimum.
var ProfileSecure = VersionProfile{
	Min:         VersionTLS12,
	Max:         VersionTLS13,
	Description: "TLS 1.2+ - secure and widely compatible",
}

// CipherSuitesTLS12Secure is offered when the negotiated version is
// TLS 1.2; TLS 1.3 ignores CipherSuites and selects its own AEAD suite.
var CipherSuitesTLS12Secure = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}

// ApplyVersionProfile applies a version profile to config.
func ApplyVersionProfile(config *tls.Config, profile VersionProfile) {
	config.MinVersion = profile.Min
	config.MaxVersion = profile.Max
}

// ApplyCipherSuites sets config.CipherSuites for a negotiated minimum
// version of minVersion. TLS 1.3 leaves CipherSuites nil since Go's
// crypto/tls negotiates its own TLS 1.3 suite set regardless of this
// field; anything below TLS 1.3 gets the ECDHE/AEAD suite list above.
func ApplyCipherSuites(config *tls.Config, minVersion uint16) {
	if minVersion >= VersionTLS13 {
		config.CipherSuites = nil
		return
	}
	config.CipherSuites = CipherSuitesTLS12Secure
}
