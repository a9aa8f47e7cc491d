// Package h1parse implements the incremental HTTP/1.1 request-line+headers
// parser described in spec.md section 4.5, grounded on the original's
// http_parser_run state machine in src/http/http_parser.c.
//
// The original's state machine never actually advances past PS_HEADERS or
// PS_HEADERS_FINISHED in production: parser_state != PS_HEADERS and
// parser_state == PS_COMPLETED are comparisons, not assignments, so the
// dispatch branch is unreachable dead code. spec.md supersedes that defect;
// this parser actually performs the state transitions.
package h1parse

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// State is a parser state in the START_LINE -> HEADERS -> HEADERS_FINISHED
// -> COMPLETED/ERROR state machine.
type State int

const (
	StateStartLine State = iota
	StateHeaders
	StateHeadersFinished
	StateCompleted
	StateError
)

// MaxHeaderBytes bounds the accumulated request-line+headers buffer,
// spec.md section 4.5's 8 KiB limit.
const MaxHeaderBytes = 8192

// MaxHeaderCount bounds the number of distinct header lines accepted.
const MaxHeaderCount = 100

var (
	ErrTooLarge      = errors.New("h1parse: header block exceeds 8 KiB limit")
	ErrTooManyFields  = errors.New("h1parse: too many header fields")
	ErrBadMethod     = errors.New("h1parse: method must be GET or POST")
	ErrBadPath       = errors.New("h1parse: path missing or contains a traversal segment")
	ErrBadVersion    = errors.New("h1parse: malformed HTTP version")
	ErrMalformed     = errors.New("h1parse: malformed request line or header")
	ErrBadHeaderField = errors.New("h1parse: invalid header field name or value")
)

// Header is one parsed "Name: Value" header line.
type Header struct {
	Name  string
	Value string
}

// Request is the result of a completed parse.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
}

// Parser incrementally consumes bytes as they arrive off a non-blocking
// socket and tracks parse state across Feed calls; it never blocks and
// never requires the full request to be buffered ahead of time.
type Parser struct {
	state  State
	buf    []byte
	req    Request
	cursor int // byte offset into buf where header scanning should resume
}

// Feed appends newly read bytes and advances the state machine as far as
// possible. done is true once StateCompleted is reached; err is non-nil on
// the call that enters StateError, and every later call returns
// ErrMalformed without reprocessing.
func (p *Parser) Feed(b []byte) (done bool, err error) {
	if p.state == StateError {
		return false, ErrMalformed
	}
	p.buf = append(p.buf, b...)
	if len(p.buf) > MaxHeaderBytes && p.state != StateCompleted {
		p.state = StateError
		return false, ErrTooLarge
	}

	if p.state == StateStartLine {
		ok, perr := p.parseStartLine()
		if perr != nil {
			p.state = StateError
			return false, perr
		}
		if !ok {
			return false, nil
		}
		p.state = StateHeaders
	}

	if p.state == StateHeaders {
		if bytes.HasPrefix(p.buf[p.cursor:], []byte("\r\n")) {
			// No header lines: the start line's CRLF and this one form
			// the blank-line terminator.
			p.cursor += 2
		} else {
			end := bytes.Index(p.buf[p.cursor:], []byte("\r\n\r\n"))
			if end < 0 {
				return false, nil
			}
			headerBlock := p.buf[p.cursor : p.cursor+end]
			if perr := p.parseHeaders(headerBlock); perr != nil {
				p.state = StateError
				return false, perr
			}
			p.cursor += end + 4
		}
		p.state = StateHeadersFinished
	}

	if p.state == StateHeadersFinished {
		p.state = StateCompleted
	}

	return p.state == StateCompleted, nil
}

// Request returns the parsed request; only meaningful once Feed has
// returned done=true.
func (p *Parser) Request() Request {
	return p.req
}

// parseStartLine reports ok=true once a full "METHOD PATH VERSION\r\n" line
// has been consumed from p.buf, or ok=false if more bytes are needed.
func (p *Parser) parseStartLine() (ok bool, err error) {
	idx := bytes.Index(p.buf, []byte("\r\n"))
	if idx < 0 {
		return false, nil
	}
	line := string(p.buf[:idx])
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return false, ErrMalformed
	}
	method, path, version := parts[0], parts[1], parts[2]

	upperMethod := strings.ToUpper(method)
	if upperMethod != "GET" && upperMethod != "POST" {
		return false, ErrBadMethod
	}

	if path == "" || strings.Contains(path, "../") {
		return false, ErrBadPath
	}

	if !strings.HasPrefix(strings.ToUpper(version), "HTTP/1.") {
		return false, ErrBadVersion
	}

	p.req.Method = upperMethod
	p.req.Path = path
	p.req.Version = version
	p.cursor = idx + 2
	return true, nil
}

func (p *Parser) parseHeaders(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	lines := bytes.Split(block, []byte("\r\n"))
	if len(lines) > MaxHeaderCount {
		return ErrTooManyFields
	}
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		name, value, found := strings.Cut(string(line), ":")
		if !found {
			return ErrMalformed
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return ErrBadHeaderField
		}
		p.req.Headers = append(p.req.Headers, Header{Name: name, Value: value})
	}
	return nil
}

// Reset prepares the parser to process a subsequent request on the same
// keep-alive-free connection (spec.md section 7.2 keeps every HTTP/1
// connection single-request via Connection: close, but Reset exists so a
// connection object can still be pooled/reused by the caller).
func (p *Parser) Reset() {
	*p = Parser{}
}
