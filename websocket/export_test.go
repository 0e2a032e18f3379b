package websocket

// Exported seams for black-box tests in package websocket_test that need
// to drive the wire codec or construct a Conn directly, without exposing
// any of this to real callers.

import (
	"bufio"
	"net"
)

// FrameForTest mirrors frame for tests outside this package.
type FrameForTest struct {
	Fin     bool
	Rsv1    bool
	Rsv2    bool
	Rsv3    bool
	Opcode  byte
	Masked  bool
	Mask    [4]byte
	Payload []byte
}

func (f *FrameForTest) toFrame() *frame {
	return &frame{
		fin: f.Fin, rsv1: f.Rsv1, rsv2: f.Rsv2, rsv3: f.Rsv3,
		opcode: f.Opcode, masked: f.Masked, mask: f.Mask, payload: f.Payload,
	}
}

func fromFrame(f *frame) *FrameForTest {
	return &FrameForTest{
		Fin: f.fin, Rsv1: f.rsv1, Rsv2: f.rsv2, Rsv3: f.rsv3,
		Opcode: f.opcode, Masked: f.masked, Mask: f.mask, Payload: f.payload,
	}
}

// ReadFrameForTest reads a single frame off the wire.
func ReadFrameForTest(r *bufio.Reader, isServerSide bool, maxPayload int64) (*FrameForTest, error) {
	f, err := readFrame(r, isServerSide, maxPayload)
	if err != nil {
		return nil, err
	}
	return fromFrame(f), nil
}

// WriteFrameForTest writes a single frame to the wire.
func WriteFrameForTest(w *bufio.Writer, ft *FrameForTest) error {
	return writeFrame(w, ft.toFrame())
}

// ApplyMaskForTest exposes the masking XOR for round-trip assertions.
func ApplyMaskForTest(data []byte, mask [4]byte) {
	applyMask(data, mask)
}

// Opcode constants, exported for tests that build frames by hand.
const (
	OpcodeContinuationForTest = opcodeContinuation
	OpcodeTextForTest         = opcodeText
	OpcodeBinaryForTest       = opcodeBinary
	OpcodeCloseForTest        = opcodeClose
	OpcodePingForTest         = opcodePing
	OpcodePongForTest         = opcodePong
)

// NewConnForTest builds a Conn around a raw net.Conn, bypassing the
// handshake, for tests that want to drive the frame-level protocol
// directly instead of going through Endpoint/Acceptor.
func NewConnForTest(netConn net.Conn, isServerSide bool, handler ConnHandler) *Conn {
	return newConn(netConn, isServerSide, false, DefaultParams(), handler, newConnRegistry())
}

// RunForTest starts the Conn's reader loop, for use with NewConnForTest.
func RunForTest(c *Conn) { go c.run() }
