package providers

import (
	"bufio"
	"io"
	"strings"
)

// maxSSELineBytes bounds a single SSE line. Gemini sends whole candidates,
// including inline images, in one event.
const maxSSELineBytes = 8 << 20

// SSEScanner reads the data payloads of a Server-Sent Events stream.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner creates a scanner over r.
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next data payload.
//
// Empty lines, comments and non-data fields are skipped. It returns io.EOF
// at the end of the stream or when the payload is the "[DONE]" sentinel.
func (s *SSEScanner) Next() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return "", io.EOF
		}
		return data, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
