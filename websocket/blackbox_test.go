package websocket_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	ws "github.com/coregx/websocket/websocket"
)

// TestExportedFrameCodecRoundTrip drives the wire codec directly through
// the white-box seam, the way a caller with no access to Conn internals
// still might want to fuzz or benchmark the framing layer in isolation.
func TestExportedFrameCodecRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := &ws.FrameForTest{
		Fin:     true,
		Opcode:  ws.OpcodeTextForTest,
		Masked:  true,
		Payload: []byte("exported seam"),
	}

	done := make(chan error, 1)
	go func() {
		bw := bufio.NewWriter(client)
		done <- ws.WriteFrameForTest(bw, sent)
	}()

	got, err := ws.ReadFrameForTest(bufio.NewReader(server), true, 1<<16)
	if err != nil {
		t.Fatalf("ReadFrameForTest: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrameForTest: %v", err)
	}

	if string(got.Payload) != "exported seam" {
		t.Fatalf("payload = %q", got.Payload)
	}
	if got.Opcode != ws.OpcodeTextForTest || !got.Fin {
		t.Fatalf("got = %+v", got)
	}
}

// TestExportedMaskRoundTrip confirms the mask exported for tests is a
// true XOR involution, matching the unexported implementation it wraps.
func TestExportedMaskRoundTrip(t *testing.T) {
	mask := [4]byte{0x11, 0x22, 0x33, 0x44}
	data := []byte("round trip me")
	original := append([]byte(nil), data...)

	ws.ApplyMaskForTest(data, mask)
	if string(data) == string(original) {
		t.Fatal("masking left data unchanged")
	}
	ws.ApplyMaskForTest(data, mask)
	if string(data) != string(original) {
		t.Fatalf("double mask = %q, want %q", data, original)
	}
}

// TestNewConnForTestDrivesConnDirectly exercises the exported Conn
// constructor bypassing the handshake, confirming the reader loop and
// handler delivery work against a hand-built frame stream.
func TestNewConnForTestDrivesConnDirectly(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	opened := make(chan string, 1)
	messages := make(chan string, 1)
	h := recordingConnHandler{opened: opened, messages: messages}

	server := ws.NewConnForTest(serverRaw, true, h)
	ws.RunForTest(server)

	bw := bufio.NewWriter(clientRaw)
	frame := &ws.FrameForTest{
		Fin:     true,
		Opcode:  ws.OpcodeTextForTest,
		Masked:  true,
		Payload: []byte("hand built"),
	}
	if err := ws.WriteFrameForTest(bw, frame); err != nil {
		t.Fatalf("WriteFrameForTest: %v", err)
	}

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("OnOpen never delivered")
	}

	select {
	case msg := <-messages:
		if msg != "hand built" {
			t.Fatalf("message = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never delivered the hand-built frame")
	}
}

type recordingConnHandler struct {
	opened   chan string
	messages chan string
}

func (h recordingConnHandler) OnOpen(_ *ws.Conn, subprotocol string) { h.opened <- subprotocol }
func (h recordingConnHandler) OnMessage(c *ws.Conn, r *ws.MessageReader, isText bool) {
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	h.messages <- string(buf[:n])
}
func (h recordingConnHandler) OnError(*ws.Conn, error)   {}
func (h recordingConnHandler) OnClose(*ws.Conn, ws.Status) {}
