package websocket

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxHeaderLineLength caps a single handshake header line, guarding
// against a peer that never sends CRLF.
const maxHeaderLineLength = 8 * 1024

// headerBlock is a parsed HTTP/1.1-style start line plus header fields,
// read and written directly over a raw connection. The opening
// handshake happens before any WebSocket framing exists and, on the
// client side, before any http.Client involvement makes sense either —
// the client dials a bare net.Conn and speaks the handshake by hand, so
// this codec works against a bufio.Reader/io.Writer pair rather than
// net/http's request/response types.
//
// Field order is preserved for writing; lookups are case-insensitive
// per RFC 7230 Section 3.2. A field may carry more than one value, set
// either via repeated header lines or a single comma-separated line;
// both forms normalize into the same ordered value list.
type headerBlock struct {
	startLine string
	names     []string            // canonical order of first appearance
	values    map[string][]string // lower(name) -> values, in append order
}

func newHeaderBlock() *headerBlock {
	return &headerBlock{values: make(map[string][]string)}
}

// setStartLine sets the HTTP start line ("GET / HTTP/1.1", "HTTP/1.1 101 ...").
func (h *headerBlock) setStartLine(line string) *headerBlock {
	h.startLine = line
	return h
}

// set replaces all values of name with a single value.
func (h *headerBlock) set(name, value string) *headerBlock {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = []string{value}
	return h
}

// add appends value to name, keeping any values already present.
func (h *headerBlock) add(name, value string) *headerBlock {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = append(h.values[key], value)
	return h
}

// get returns the first value of name, or "" if absent.
func (h *headerBlock) get(name string) string {
	vs := h.values[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// getValues returns every value of name, splitting any comma-separated
// line into individual tokens, or nil if name is absent.
func (h *headerBlock) getValues(name string) []string {
	vs, ok := h.values[strings.ToLower(name)]
	if !ok {
		return nil
	}
	var out []string
	for _, v := range vs {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// hasToken reports whether name's value list contains token, compared
// case-insensitively (used for Connection/Upgrade token matching).
func (h *headerBlock) hasToken(name, token string) bool {
	for _, v := range h.getValues(name) {
		if strings.EqualFold(v, token) {
			return true
		}
	}
	return false
}

// readHeaderBlock reads a start line, header lines and the terminating
// blank line from r. It does not read a body: the WebSocket handshake
// has none.
func readHeaderBlock(r *bufio.Reader) (*headerBlock, error) {
	h := newHeaderBlock()

	line, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, ErrMalformedHeader
	}
	h.startLine = line

	for {
		line, err := readHeaderLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break // blank line terminates the header block
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, ErrMalformedHeader
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if name == "" {
			return nil, ErrMalformedHeader
		}
		h.add(name, value)
	}

	return h, nil
}

// readHeaderLine reads one CRLF- or LF-terminated line, stripping the
// terminator, and enforces maxHeaderLineLength.
func readHeaderLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxHeaderLineLength {
			return "", ErrHeaderTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		line := string(buf)
		if err != nil {
			if err == io.EOF && line == "" {
				return "", io.EOF
			}
			return "", fmt.Errorf("read header line: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// write serializes the start line, headers in append order, and the
// terminating blank line to w.
func (h *headerBlock) write(w io.Writer) error {
	buf := &strings.Builder{}
	buf.WriteString(h.startLine)
	buf.WriteString("\r\n")
	for _, name := range h.names {
		for _, v := range h.values[strings.ToLower(name)] {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteString("\r\n")
		}
	}
	buf.WriteString("\r\n")
	_, err := io.WriteString(w, buf.String())
	return err
}
