package tlsdriver

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

// generateTestCertificate builds a self-signed server certificate, grounded
// on the teacher's tests/unit/mtls_test.go generateTestCert helper.
func generateTestCertificate(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "zeushttp-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
}

// TestSessionHandshakeSurvivesPartialCiphertextFeeds drives a real client
// tls.Conn against a Session across many single-byte FeedCiphertext/
// Handshake steps, which guarantees several want-read cycles per TLS
// message (the ClientHello alone needs more than one byte). This is the
// scenario that previously poisoned the session permanently: the first
// want-read cached a stale error in crypto/tls's halfConn state that every
// later read returned verbatim, even once FeedCiphertext supplied the
// bytes the handshake was waiting for.
func TestSessionHandshakeSurvivesPartialCiphertextFeeds(t *testing.T) {
	cert := generateTestCertificate(t)
	session := NewSession(&tls.Config{Certificates: []tls.Certificate{cert}})

	clientRaw, serverRaw := net.Pipe()
	client := tls.Client(clientRaw, &tls.Config{InsecureSkipVerify: true})

	clientDone := make(chan error, 1)
	go func() {
		clientDone <- client.Handshake()
	}()

	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := serverRaw.Read(buf)
			if n > 0 {
				session.FeedCiphertext(buf[:n])
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		result := session.Handshake()
		drained := session.DrainCiphertext()
		if len(drained) > 0 {
			if _, err := serverRaw.Write(drained); err != nil {
				t.Fatalf("write ciphertext to client: %v", err)
			}
		}
		if result == ResultDone {
			break
		}
		if result == ResultFatal {
			t.Fatalf("handshake reported ResultFatal before completing")
		}
		select {
		case err := <-clientDone:
			t.Fatalf("client handshake returned before server finished: %v", err)
		case <-deadline:
			t.Fatal("handshake did not complete within the deadline: looks re-poisoned on want-read")
		default:
		}
		if len(drained) == 0 {
			time.Sleep(200 * time.Microsecond)
		}
	}

	if !session.HandshakeDone() {
		t.Fatal("expected HandshakeDone() to be true after ResultDone")
	}

	select {
	case err := <-clientDone:
		if err != nil {
			t.Fatalf("client handshake failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client handshake never returned")
	}

	_ = readErr
	clientRaw.Close()
	serverRaw.Close()
}
