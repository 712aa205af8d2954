// Package wire implements C3 (spec.md section 4.3): the
// {SYNC1,SYNC2,CMD,LEN,PAYLOAD,CRC} frame codec, the stable command
// code taxonomy, the error payload, and the telemetry packet builder.
// The framing discipline is directly modeled on the teacher's
// nkt.EncodeTelegram/DecodeTelegram (sanitize/CRC/frame on the way
// out, frame/CRC-check/fields on the way in), adapted from a
// byte-stuffed ASCII telegram to a fixed-header binary frame with an
// explicit length field (see DESIGN.md).
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/rakyury/pmu-30-sub009/internal/crcx"
)

const (
	Sync1 byte = 0xAA
	Sync2 byte = 0x55

	// MaxPayloadLen bounds LEN (spec.md section 4.3).
	MaxPayloadLen = 1024

	// FrameOverhead is the fixed byte cost around PAYLOAD.
	FrameOverhead = 7
)

var (
	ErrInvalidLength = errors.New("wire: payload length exceeds maximum")
	ErrCrcMismatch   = errors.New("wire: frame crc mismatch")
)

// Build assembles one complete frame: SYNC1 SYNC2 CMD LEN PAYLOAD CRC.
func Build(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, ErrInvalidLength
	}
	body := make([]byte, 0, 3+len(payload))
	body = append(body, byte(cmd))
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	body = append(body, lenBuf[:]...)
	body = append(body, payload...)

	crc := crcx.Frame16(body)
	out := make([]byte, 0, 2+len(body)+2)
	out = append(out, Sync1, Sync2)
	out = append(out, body...)
	var crcBuf [2]byte
	binary.LittleEndian.PutUint16(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)
	return out, nil
}

// parserState names the frame parser's states (spec.md section 4.3).
type parserState uint8

const (
	stateSync1 parserState = iota
	stateSync2
	stateCmd
	stateLenLo
	stateLenHi
	statePayload
	stateCrcLo
	stateCrcHi
)

// FrameHandler is invoked once per completed, CRC-valid frame.
type FrameHandler func(cmd Command, payload []byte)

// ErrorHandler is invoked on a framing error (InvalidLength or
// CrcMismatch); the parser always resets to Sync1 afterward.
type ErrorHandler func(kind ErrorKind)

// Parser is a byte-at-a-time frame assembler, the receive-side half of
// the protocol's state machine (spec.md section 4.3's "Parser state
// machine"). It holds no transport; callers feed it bytes as they
// arrive from any io.Reader.
type Parser struct {
	state   parserState
	cmd     byte
	lenLo   byte
	length  uint16
	payload []byte
	crcBuf  []byte

	OnFrame FrameHandler
	OnError ErrorHandler
}

// NewParser returns a Parser ready to consume bytes from Sync1.
func NewParser() *Parser { return &Parser{} }

func (p *Parser) reset() {
	p.state = stateSync1
	p.payload = nil
	p.crcBuf = nil
}

// Feed processes one received byte, advancing the state machine and
// invoking OnFrame/OnError as appropriate.
func (p *Parser) Feed(b byte) {
	switch p.state {
	case stateSync1:
		if b == Sync1 {
			p.state = stateSync2
		}
	case stateSync2:
		if b == Sync2 {
			p.state = stateCmd
		} else if b != Sync1 {
			p.state = stateSync1
		}
	case stateCmd:
		p.cmd = b
		p.state = stateLenLo
	case stateLenLo:
		p.lenLo = b
		p.state = stateLenHi
	case stateLenHi:
		p.length = binary.LittleEndian.Uint16([]byte{p.lenLo, b})
		if p.length > MaxPayloadLen {
			p.fail(ErrKindInvalidLength)
			return
		}
		p.payload = make([]byte, 0, p.length)
		if p.length == 0 {
			p.state = stateCrcLo
		} else {
			p.state = statePayload
		}
	case statePayload:
		p.payload = append(p.payload, b)
		if len(p.payload) == int(p.length) {
			p.state = stateCrcLo
		}
	case stateCrcLo:
		p.crcBuf = append(p.crcBuf, b)
		p.state = stateCrcHi
	case stateCrcHi:
		p.crcBuf = append(p.crcBuf, b)
		p.complete()
	}
}

func (p *Parser) complete() {
	body := make([]byte, 0, 3+len(p.payload))
	body = append(body, p.cmd)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], p.length)
	body = append(body, lenBuf[:]...)
	body = append(body, p.payload...)

	want := binary.LittleEndian.Uint16(p.crcBuf)
	got := crcx.Frame16(body)
	if want != got {
		p.fail(ErrKindCrcMismatch)
		return
	}
	if p.OnFrame != nil {
		p.OnFrame(Command(p.cmd), p.payload)
	}
	p.reset()
}

func (p *Parser) fail(kind ErrorKind) {
	if p.OnError != nil {
		p.OnError(kind)
	}
	p.reset()
}
