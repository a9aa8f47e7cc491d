package h2frame

// Reader incrementally assembles frames out of bytes arriving from a
// non-blocking socket: spec.md section 4.7's invariant that the engine
// "never consumes a partial frame" — bytes are fed in as they arrive and
// Next only returns a Frame once a complete header+payload is buffered,
// leaving any trailing partial frame for the next Feed call.
type Reader struct {
	buf          []byte
	maxFrameSize uint32
}

// NewReader creates a Reader enforcing maxFrameSize (0 selects MaxFrameSize).
func NewReader(maxFrameSize uint32) *Reader {
	if maxFrameSize == 0 {
		maxFrameSize = MaxFrameSize
	}
	return &Reader{maxFrameSize: maxFrameSize}
}

// Feed appends newly-read bytes to the reader's internal buffer.
func (r *Reader) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next returns the next complete frame, if one is fully buffered. ok is
// false (with err nil) when more bytes are needed before a frame is
// available.
func (r *Reader) Next() (frame Frame, ok bool, err error) {
	if len(r.buf) < FrameHeaderLen {
		return Frame{}, false, nil
	}
	hdr := ParseHeader(r.buf)
	if hdr.Length > r.maxFrameSize {
		return Frame{}, false, ErrFrameTooLarge
	}
	total := FrameHeaderLen + int(hdr.Length)
	if len(r.buf) < total {
		return Frame{}, false, nil
	}

	payload := make([]byte, hdr.Length)
	copy(payload, r.buf[FrameHeaderLen:total])
	r.buf = r.buf[total:]

	return Frame{Header: hdr, Payload: payload}, true, nil
}

// Pending returns the number of unconsumed bytes buffered (useful for
// bounding how much unparsed data a connection may accumulate).
func (r *Reader) Pending() int {
	return len(r.buf)
}

// PrefaceReader accumulates bytes until the fixed 24-byte connection
// preface is fully received (or proven invalid).
type PrefaceReader struct {
	buf []byte
}

// Feed appends bytes and reports whether the full preface has now been
// matched. err is non-nil as soon as the accumulated prefix diverges from
// Preface, without waiting for all 24 bytes.
func (p *PrefaceReader) Feed(b []byte) (matched bool, remainder []byte, err error) {
	p.buf = append(p.buf, b...)
	n := len(p.buf)
	if n > len(Preface) {
		n = len(Preface)
	}
	if string(p.buf[:n]) != Preface[:n] {
		return false, nil, ErrBadPreface
	}
	if len(p.buf) < len(Preface) {
		return false, nil, nil
	}
	return true, p.buf[len(Preface):], nil
}
