package h2frame

import (
	"github.com/zeushttp/zeushttp/internal/hpack"
	"github.com/zeushttp/zeushttp/internal/zerr"
	"github.com/zeushttp/zeushttp/pkg/constants"
)

// MaxReassembly bounds the HEADERS/CONTINUATION field-block accumulator.
// spec.md section 7.1's supplemented fix for the original's unbounded
// CONTINUATION handling (a peer that never sends END_HEADERS can force
// unbounded memory growth, the "CONTINUATION flood" class of issue):
// once a stream's accumulated fragment exceeds this bound the connection
// is torn down with a security-limit error rather than growing forever.
const MaxReassembly = 64 * 1024

// DefaultHeaderTableSize is the SETTINGS_HEADER_TABLE_SIZE this server
// advertises, matching RFC 7540's default.
const DefaultHeaderTableSize = constants.DefaultHpackTableSize

// Request is one fully reassembled HTTP/2 request, handed to the
// connection's router once HEADERS (+ CONTINUATION) complete with
// END_STREAM.
type Request struct {
	StreamID uint32
	Headers  []hpack.Header
}

// RequestHandler produces a response for one decoded request.
type RequestHandler func(req Request) (statusStaticIndex byte, body []byte)

// Engine drives one connection's HTTP/2 state: preface validation,
// SETTINGS exchange, frame reading, HEADERS/CONTINUATION reassembly, PING
// echo, and response emission. One Engine per connection, driven
// single-threaded by the owning worker — no internal locking.
type Engine struct {
	preface   PrefaceReader
	prefaceOK bool
	reader    *Reader
	writer    Writer
	dec       *hpack.Decoder
	streams   StreamTree
	handler   RequestHandler

	settingsSent bool
}

// NewEngine creates an Engine bound to handler, which is invoked once per
// complete request to produce a response.
func NewEngine(handler RequestHandler) *Engine {
	return &Engine{
		reader:  NewReader(MaxFrameSize),
		dec:     hpack.NewDecoder(DefaultHeaderTableSize),
		handler: handler,
	}
}

// Feed accepts newly-read connection bytes and returns any frames that
// should be written back to the peer (SETTINGS ack/initial settings,
// WINDOW_UPDATE, PING ack, response HEADERS/DATA), in send order.
func (e *Engine) Feed(b []byte) (out [][]byte, err error) {
	if !e.prefaceOK {
		matched, remainder, perr := e.preface.Feed(b)
		if perr != nil {
			return nil, zerr.Protocol("h2.preface", perr.Error())
		}
		if !matched {
			return nil, nil
		}
		e.prefaceOK = true
		out = append(out, e.initialFrames()...)
		b = remainder
	}

	e.reader.Feed(b)
	for {
		frame, ok, ferr := e.reader.Next()
		if ferr != nil {
			return out, zerr.Protocol("h2.frame", ferr.Error())
		}
		if !ok {
			return out, nil
		}
		produced, herr := e.handleFrame(frame)
		if herr != nil {
			return out, herr
		}
		out = append(out, produced...)
	}
}

func (e *Engine) initialFrames() [][]byte {
	settings := [][2]uint32{
		{0x3, constants.MaxConcurrentStreams}, // SETTINGS_MAX_CONCURRENT_STREAMS
		{0x4, 65535},                          // SETTINGS_INITIAL_WINDOW_SIZE
		{0x1, DefaultHeaderTableSize},          // SETTINGS_HEADER_TABLE_SIZE
	}
	return [][]byte{
		e.writer.SettingsFrame(settings, false),
		e.writer.WindowUpdateFrame(0, 65535),
	}
}

func (e *Engine) handleFrame(f Frame) ([][]byte, error) {
	switch f.Header.Type {
	case FrameSettings:
		return e.handleSettings(f)
	case FramePing:
		return e.handlePing(f)
	case FrameHeaders:
		return e.handleHeaders(f)
	case FrameContinuation:
		return e.handleContinuation(f)
	case FrameWindowUpdate, FramePriority, FrameRSTStream:
		// Acknowledged structurally by ignoring: this server does not
		// implement flow control backpressure or stream priority.
		return nil, nil
	case FrameData:
		return e.handleData(f)
	case FrameGoAway:
		return nil, nil
	default:
		// Unknown frame types are ignored per RFC 7540 section 4.1.
		return nil, nil
	}
}

func (e *Engine) handleSettings(f Frame) ([][]byte, error) {
	if f.Header.Flags&FlagAck != 0 {
		return nil, nil
	}
	if f.Header.Length%6 != 0 {
		return nil, zerr.Protocol("h2.settings", "malformed SETTINGS frame length")
	}
	for i := 0; i+6 <= len(f.Payload); i += 6 {
		id := uint16(f.Payload[i])<<8 | uint16(f.Payload[i+1])
		value := uint32(f.Payload[i+2])<<24 | uint32(f.Payload[i+3])<<16 |
			uint32(f.Payload[i+4])<<8 | uint32(f.Payload[i+5])
		if id == 0x1 { // SETTINGS_HEADER_TABLE_SIZE
			e.dec.SetMaxDynamicTableSize(int(value))
		}
	}
	return [][]byte{e.writer.SettingsFrame(nil, true)}, nil
}

func (e *Engine) handlePing(f Frame) ([][]byte, error) {
	if f.Header.Flags&FlagAck != 0 {
		return nil, nil
	}
	if len(f.Payload) != 8 {
		return nil, zerr.Protocol("h2.ping", "PING payload must be 8 bytes")
	}
	var data [8]byte
	copy(data[:], f.Payload)
	return [][]byte{e.writer.PingFrame(data, true)}, nil
}

func (e *Engine) handleHeaders(f Frame) ([][]byte, error) {
	if f.Header.StreamID == 0 {
		return nil, zerr.Protocol("h2.headers", "HEADERS on stream 0")
	}
	if _, exists := e.streams.Find(f.Header.StreamID); !exists {
		open := 0
		e.streams.Walk(func(s *Stream) {
			if s.State != StreamClosed {
				open++
			}
		})
		if open >= constants.MaxConcurrentStreams {
			return nil, zerr.Security("h2.streams", "MAX_CONCURRENT_STREAMS exceeded")
		}
	}
	stream := e.streams.Insert(f.Header.StreamID)

	block := f.Payload
	if f.Header.Flags&FlagPadded != 0 && len(block) > 0 {
		padLen := int(block[0])
		block = block[1:]
		if padLen <= len(block) {
			block = block[:len(block)-padLen]
		}
	}
	if f.Header.Flags&FlagPriority != 0 && len(block) >= 5 {
		block = block[5:]
	}

	stream.Reassembly = append(stream.Reassembly, block...)
	if len(stream.Reassembly) > MaxReassembly {
		return nil, zerr.Security("h2.reassembly", "HEADERS/CONTINUATION field block exceeds bound")
	}

	if f.Header.Flags&FlagEndStream != 0 {
		stream.EndStreamSeen = true
	}

	if f.Header.Flags&FlagEndHeaders == 0 {
		stream.ReassemblyOn = true
		return nil, nil
	}
	return e.completeHeaders(stream)
}

func (e *Engine) handleContinuation(f Frame) ([][]byte, error) {
	stream, ok := e.streams.Find(f.Header.StreamID)
	if !ok || !stream.ReassemblyOn {
		return nil, zerr.Protocol("h2.continuation", "CONTINUATION without preceding HEADERS")
	}

	stream.Reassembly = append(stream.Reassembly, f.Payload...)
	if len(stream.Reassembly) > MaxReassembly {
		return nil, zerr.Security("h2.reassembly", "HEADERS/CONTINUATION field block exceeds bound")
	}

	if f.Header.Flags&FlagEndHeaders == 0 {
		return nil, nil
	}
	return e.completeHeaders(stream)
}

func (e *Engine) completeHeaders(stream *Stream) ([][]byte, error) {
	stream.ReassemblyOn = false
	headers, err := e.dec.DecodeFields(stream.Reassembly)
	stream.Reassembly = nil
	if err != nil {
		return nil, zerr.Protocol("h2.hpack", err.Error())
	}

	if !stream.EndStreamSeen {
		// Request has a body still arriving on DATA frames; nothing to
		// respond with yet.
		return nil, nil
	}
	return e.respond(stream, headers), nil
}

func (e *Engine) handleData(f Frame) ([][]byte, error) {
	stream, ok := e.streams.Find(f.Header.StreamID)
	if !ok {
		return nil, zerr.Protocol("h2.data", "DATA on unknown stream")
	}
	if f.Header.Flags&FlagEndStream != 0 {
		stream.EndStreamSeen = true
		if !stream.ReassemblyOn && stream.State == StreamOpen {
			// Headers already completed without END_STREAM; now the
			// body has finished arriving, so the request is ready.
			return e.respond(stream, nil), nil
		}
	}
	return nil, nil
}

func (e *Engine) respond(stream *Stream, headers []hpack.Header) [][]byte {
	stream.State = StreamClosed
	statusIndex, body := e.handler(Request{StreamID: stream.ID, Headers: headers})
	return [][]byte{
		e.writer.StatusHeadersFrame(stream.ID, statusIndex, false),
		e.writer.DataFrame(stream.ID, body, true),
	}
}
