package websocket

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func roundTrip(t *testing.T, f *frame, isServerSide bool) *frame {
	t.Helper()
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := writeFrame(bw, f); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(bufio.NewReader(&buf), isServerSide, -1)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	return got
}

func TestFrameRoundTripUnmaskedServerToClient(t *testing.T) {
	f := &frame{fin: true, opcode: opcodeText, masked: false, payload: []byte("hello")}
	got := roundTrip(t, f, false)
	if !bytes.Equal(got.payload, []byte("hello")) {
		t.Fatalf("payload = %q, want %q", got.payload, "hello")
	}
	if !got.fin || got.opcode != opcodeText {
		t.Fatalf("fin/opcode mismatch: %+v", got)
	}
}

func TestFrameRoundTripMaskedClientToServer(t *testing.T) {
	f := &frame{fin: true, opcode: opcodeBinary, masked: true, payload: []byte("binary payload")}
	got := roundTrip(t, f, true)
	if !bytes.Equal(got.payload, []byte("binary payload")) {
		t.Fatalf("payload = %q, want %q", got.payload, "binary payload")
	}
}

func TestWriteFrameDrawsFreshMaskEachCall(t *testing.T) {
	f := &frame{fin: true, opcode: opcodeText, masked: true, payload: []byte("same payload")}
	var buf1, buf2 bytes.Buffer
	if err := writeFrame(bufio.NewWriter(&buf1), f); err != nil {
		t.Fatal(err)
	}
	if err := writeFrame(bufio.NewWriter(&buf2), f); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(buf1.Bytes(), buf2.Bytes()) {
		t.Fatalf("two masked frames with identical payload encoded identically: mask key was not refreshed")
	}
	if !bytes.Equal(f.payload, []byte("same payload")) {
		t.Fatalf("writeFrame mutated the caller's payload buffer: %q", f.payload)
	}
}

func TestReadFrameRejectsMaskDirectionMismatch(t *testing.T) {
	f := &frame{fin: true, opcode: opcodeText, masked: true, payload: []byte("x")}
	var buf bytes.Buffer
	if err := writeFrame(bufio.NewWriter(&buf), f); err != nil {
		t.Fatal(err)
	}
	// A server reading a masked frame should be fine; a client reading a
	// masked frame from a server must reject it.
	_, err := readFrame(bufio.NewReader(&buf), false, -1)
	if !errors.Is(err, ErrMaskMismatch) {
		t.Fatalf("err = %v, want ErrMaskMismatch", err)
	}
}

func TestReadFrameRejectsFragmentedControlFrame(t *testing.T) {
	header := []byte{0x09, 0x00} // opcode PING, FIN=0, len=0
	_, err := readFrame(bufio.NewReader(bytes.NewReader(header)), false, -1)
	if !errors.Is(err, ErrControlFragmented) {
		t.Fatalf("err = %v, want ErrControlFragmented", err)
	}
}

func TestReadFrameRejectsOversizeControlPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0}, 126)
	var buf bytes.Buffer
	// bypass writeFrame's own control-size guard by encoding by hand
	buf.WriteByte(0x80 | opcodePing)
	buf.WriteByte(126) // 16-bit length marker
	buf.WriteByte(0)
	buf.WriteByte(126)
	buf.Write(payload)

	_, err := readFrame(bufio.NewReader(&buf), false, -1)
	if !errors.Is(err, ErrControlTooLarge) {
		t.Fatalf("err = %v, want ErrControlTooLarge", err)
	}
}

func TestReadFrameRejectsUnknownOpcode(t *testing.T) {
	header := []byte{0x83, 0x00} // FIN=1, opcode 0x3 (reserved)
	_, err := readFrame(bufio.NewReader(bytes.NewReader(header)), false, -1)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("err = %v, want ErrInvalidOpcode", err)
	}
}

func TestReadFrameEnforcesMaxPayloadBudget(t *testing.T) {
	f := &frame{fin: true, opcode: opcodeBinary, masked: false, payload: bytes.Repeat([]byte{1}, 1000)}
	var buf bytes.Buffer
	if err := writeFrame(bufio.NewWriter(&buf), f); err != nil {
		t.Fatal(err)
	}
	_, err := readFrame(bufio.NewReader(&buf), false, 100)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestWriteFrameRejectsInvalidOpcode(t *testing.T) {
	f := &frame{fin: true, opcode: 0x5, payload: nil}
	err := writeFrame(bufio.NewWriter(&bytes.Buffer{}), f)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("err = %v, want ErrInvalidOpcode", err)
	}
}

func TestPayloadLengthEncodingBoundaries(t *testing.T) {
	sizes := []int{0, 1, 125, 126, 65535, 65536}
	for _, size := range sizes {
		f := &frame{fin: true, opcode: opcodeBinary, masked: false, payload: bytes.Repeat([]byte{7}, size)}
		got := roundTrip(t, f, false)
		if len(got.payload) != size {
			t.Fatalf("size %d: got payload length %d", size, len(got.payload))
		}
	}
}

func TestApplyMaskIsInvolution(t *testing.T) {
	mask := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := []byte("round trip through xor twice")
	original := append([]byte(nil), data...)
	applyMask(data, mask)
	applyMask(data, mask)
	if !bytes.Equal(data, original) {
		t.Fatalf("double mask did not restore original: %q vs %q", data, original)
	}
}
