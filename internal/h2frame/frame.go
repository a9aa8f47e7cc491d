// Package h2frame implements the HTTP/2 framing layer described in
// spec.md section 4.7: preface validation, the 9-byte frame header,
// SETTINGS negotiation, HEADERS/CONTINUATION reassembly bounded against a
// CONTINUATION flood, PING echo, and minimal response frame emission.
//
// Grounded on the original's src/http/http2.c, with frame-type and flag
// constants cross-checked against golang.org/x/net/http2's FrameType/Flags
// (used here for their numeric values only — the frame reader, writer and
// HPACK integration below are hand-rolled, not delegated to x/net/http2).
package h2frame

import (
	"encoding/binary"
	"errors"
)

// FrameType is the 8-bit frame type field of the frame header.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

// Flags for the frame types this server actually inspects.
const (
	FlagEndStream  uint8 = 0x1
	FlagEndHeaders uint8 = 0x4
	FlagPadded     uint8 = 0x8
	FlagPriority   uint8 = 0x20
	FlagAck        uint8 = 0x1 // shared bit position for SETTINGS_ACK / PING_ACK
)

// MaxFrameSize is the default SETTINGS_MAX_FRAME_SIZE this server
// advertises and enforces on inbound frames; RFC 7540 section 4.2's floor.
const MaxFrameSize = 16384

// FrameHeaderLen is the fixed 9-byte frame header size.
const FrameHeaderLen = 9

// Preface is the connection preface every HTTP/2 client must send before
// any frame, RFC 7540 section 3.5.
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

var (
	ErrFrameTooLarge  = errors.New("h2frame: frame length exceeds SETTINGS_MAX_FRAME_SIZE")
	ErrBadPreface     = errors.New("h2frame: invalid connection preface")
	ErrIncompleteData = errors.New("h2frame: not enough bytes for a complete frame")
)

// Header is a parsed 9-byte frame header.
type Header struct {
	Length   uint32 // 24 bits
	Type     FrameType
	Flags    uint8
	StreamID uint32 // 31 bits, high reserved bit stripped
}

// ParseHeader decodes the fixed 9-byte frame header. Callers must ensure
// len(b) >= FrameHeaderLen.
func ParseHeader(b []byte) Header {
	length := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return Header{
		Length:   length,
		Type:     FrameType(b[3]),
		Flags:    b[4],
		StreamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}
}

// WriteHeader encodes hdr into dst, which must be at least FrameHeaderLen
// bytes long.
func WriteHeader(dst []byte, hdr Header) {
	dst[0] = byte(hdr.Length >> 16)
	dst[1] = byte(hdr.Length >> 8)
	dst[2] = byte(hdr.Length)
	dst[3] = byte(hdr.Type)
	dst[4] = hdr.Flags
	binary.BigEndian.PutUint32(dst[5:9], hdr.StreamID&0x7fffffff)
}

// Frame is one parsed frame: header plus the payload slice (a view into
// the reader's internal buffer — copy it before the next Next() call if
// it must outlive that call).
type Frame struct {
	Header  Header
	Payload []byte
}
