package timesync

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

func reply(t time.Time) []byte {
	b := make([]byte, packetLen)
	b[0] = version<<3 | modeServer
	b[1] = 2 // stratum
	binary.BigEndian.PutUint32(b[40:], uint32(t.Unix()+ntpEpochOffset))
	binary.BigEndian.PutUint32(b[44:], uint32((int64(t.Nanosecond())<<32)/int64(time.Second)))
	return b
}

func TestParse(t *testing.T) {
	want := time.Date(2024, 3, 7, 14, 5, 9, 500_000_000, time.UTC)

	got, err := Parse(reply(want))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if d := got.Sub(want); d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseRejects(t *testing.T) {
	good := reply(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:20] }, ErrShortReply},
		{"client mode", func(b []byte) []byte { b[0] = version<<3 | modeClient; return b }, ErrNotServer},
		{"kiss of death", func(b []byte) []byte { b[1] = 0; return b }, ErrUnsynchronized},
		{"alarm", func(b []byte) []byte { b[0] |= 3 << 6; return b }, ErrUnsynchronized},
		{"zero time", func(b []byte) []byte {
			for i := 40; i < 48; i++ {
				b[i] = 0
			}
			return b
		}, ErrZeroTransmitted},
	}

	for _, tt := range tests {
		b := append([]byte(nil), good...)
		if _, err := Parse(tt.mutate(b)); err != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestQuery(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC)
	go func() {
		req := make([]byte, packetLen)
		if _, err := server.Read(req); err != nil {
			return
		}
		if req[0]&0x07 != modeClient {
			return
		}
		server.Write(reply(want))
	}()

	got, err := Query(client, time.Second)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestQueryTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		req := make([]byte, packetLen)
		server.Read(req)
		// Never answer.
	}()

	if _, err := Query(client, 20*time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}
