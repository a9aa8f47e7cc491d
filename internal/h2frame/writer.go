package h2frame

import "encoding/binary"

// Writer builds raw HTTP/2 frames at the byte level, grounded on
// pkg/http2.RawFrameBuilder's BuildFrame/BuildSettingsFrame/BuildPingFrame
// shape but trimmed to only the frame types this server emits.
type Writer struct {
	scratch [FrameHeaderLen]byte
}

// Build returns a complete frame (header+payload) as a freshly allocated
// byte slice.
func (w *Writer) Build(typ FrameType, flags uint8, streamID uint32, payload []byte) []byte {
	hdr := Header{Length: uint32(len(payload)), Type: typ, Flags: flags, StreamID: streamID}
	out := make([]byte, FrameHeaderLen+len(payload))
	WriteHeader(out, hdr)
	copy(out[FrameHeaderLen:], payload)
	return out
}

// StatusHeadersFrame builds the minimal HEADERS frame this server sends in
// response: a single HPACK-indexed field referencing a :status entry from
// the static table (spec.md section 4.8's fixed response shape), plus
// END_HEADERS and, when endStream is true, END_STREAM.
func (w *Writer) StatusHeadersFrame(streamID uint32, staticIndex byte, endStream bool) []byte {
	flags := FlagEndHeaders
	if endStream {
		flags |= FlagEndStream
	}
	return w.Build(FrameHeaders, flags, streamID, []byte{0x80 | staticIndex})
}

// DataFrame builds a DATA frame, optionally marked END_STREAM.
func (w *Writer) DataFrame(streamID uint32, body []byte, endStream bool) []byte {
	var flags uint8
	if endStream {
		flags = FlagEndStream
	}
	return w.Build(FrameData, flags, streamID, body)
}

// SettingsFrame builds a SETTINGS frame from an ordered list of (id, value)
// pairs, or a bodyless SETTINGS ACK when ack is true.
func (w *Writer) SettingsFrame(settings [][2]uint32, ack bool) []byte {
	if ack {
		return w.Build(FrameSettings, FlagAck, 0, nil)
	}
	payload := make([]byte, 0, 6*len(settings))
	for _, kv := range settings {
		var entry [6]byte
		binary.BigEndian.PutUint16(entry[0:2], uint16(kv[0]))
		binary.BigEndian.PutUint32(entry[2:6], kv[1])
		payload = append(payload, entry[:]...)
	}
	return w.Build(FrameSettings, 0, 0, payload)
}

// PingFrame builds a PING frame echoing data verbatim. spec.md section
// 4.7's PING fix: the original's echo path (src/http/http2.c) drops the
// payload on at least one code path before setting the ACK flag; this
// server always preserves the full 8-byte opaque payload on ack.
func (w *Writer) PingFrame(data [8]byte, ack bool) []byte {
	var flags uint8
	if ack {
		flags = FlagAck
	}
	return w.Build(FramePing, flags, 0, data[:])
}

// WindowUpdateFrame builds a WINDOW_UPDATE frame.
func (w *Writer) WindowUpdateFrame(streamID uint32, increment uint32) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, increment&0x7fffffff)
	return w.Build(FrameWindowUpdate, 0, streamID, payload)
}

// GoAwayFrame builds a GOAWAY frame for connection-level errors.
func (w *Writer) GoAwayFrame(lastStreamID uint32, errorCode uint32, debug []byte) []byte {
	payload := make([]byte, 8+len(debug))
	binary.BigEndian.PutUint32(payload[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:8], errorCode)
	copy(payload[8:], debug)
	return w.Build(FrameGoAway, 0, 0, payload)
}
