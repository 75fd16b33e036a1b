package providers

import (
	"io"
	"strings"
	"testing"
)

func TestSSEScanner(t *testing.T) {
	stream := ": keep-alive\n" +
		"event: message\n" +
		"data: {\"a\":1}\r\n" +
		"\n" +
		"data:{\"b\":2}\n" +
		"data: \n" +
		"id: 7\n" +
		"data: [DONE]\n" +
		"data: {\"after\":true}\n"

	s := NewSSEScanner(strings.NewReader(stream))

	var got []string
	for {
		data, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, data)
	}

	want := []string{`{"a":1}`, `{"b":2}`}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("payload %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSSEScanner_EndWithoutDone(t *testing.T) {
	s := NewSSEScanner(strings.NewReader("data: one\n\n"))

	if data, err := s.Next(); err != nil || data != "one" {
		t.Fatalf("expected %q, got %q (%v)", "one", data, err)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEScanner_LargeEvent(t *testing.T) {
	big := strings.Repeat("x", 1<<20)
	s := NewSSEScanner(strings.NewReader("data: " + big + "\n"))

	data, err := s.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(data) != len(big) {
		t.Errorf("expected %d bytes, got %d", len(big), len(data))
	}
}
