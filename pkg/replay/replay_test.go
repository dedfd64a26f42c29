package replay

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tuffrabit/tinygo-js8-display/pkg/feed"
)

var sample = [][]byte{
	[]byte(`{"type":"RX.DIRECTED","params":{"FROM":"K1ABC","TO":"K2XYZ","TEXT":"ONE"}}`),
	[]byte(`{"type":"RX.SPOT","params":{}}`),
	[]byte(`{"type":"RX.DIRECTED","params":{"FROM":"W3AAA","TO":"K1ABC","TEXT":"TWO"}}`),
}

func TestNewRequiresLines(t *testing.T) {
	if _, err := New(Config{}); err != ErrNoLines {
		t.Errorf("Expected ErrNoLines, got %v", err)
	}
}

func TestStreamUnpaced(t *testing.T) {
	s, _ := New(Config{Lines: sample, Interval: -1})

	var buf bytes.Buffer
	n, err := s.Stream(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if n != 3 {
		t.Errorf("written: expected 3, got %d", n)
	}
	if got := strings.Count(buf.String(), "\n"); got != 3 {
		t.Errorf("newlines: expected 3, got %d", got)
	}
	if !strings.HasPrefix(buf.String(), string(sample[0])+"\n") {
		t.Errorf("first line mismatch: %q", buf.String())
	}
}

func TestStreamPaced(t *testing.T) {
	s, _ := New(Config{Lines: sample, Interval: 20 * time.Millisecond})

	start := time.Now()
	var buf bytes.Buffer
	if _, err := s.Stream(context.Background(), &buf); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("three lines at 20ms should take ~40ms, took %v", elapsed)
	}
}

func TestStreamLoopStopsWithContext(t *testing.T) {
	s, _ := New(Config{Lines: sample, Interval: time.Millisecond, Loop: true})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	n, err := s.Stream(ctx, &buf)
	if err == nil {
		t.Error("looping stream ended without an error")
	}
	if n <= len(sample) {
		t.Errorf("expected more than one pass, got %d lines", n)
	}
}

func TestReadLines(t *testing.T) {
	in := "one\n\n  two  \r\nthree"
	lines, err := ReadLines(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if string(lines[i]) != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestServeToFeedReader(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s, _ := New(Config{Lines: sample, Interval: -1})
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	r := feed.New(feed.Config{Address: ln.Addr().String()})
	defer r.Close()
	if err := r.Connect(time.Now()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	var got []feed.Line
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 3 && time.Now().Before(deadline) {
		got = append(got, r.Poll(time.Now())...)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if !bytes.Equal(got[2].Data, sample[2]) {
		t.Errorf("line 3: expected %s, got %s", sample[2], got[2].Data)
	}

	cancel()
	if err := <-served; err != nil && !errors.Is(err, net.ErrClosed) {
		t.Errorf("Serve: expected clean shutdown, got %v", err)
	}
}
