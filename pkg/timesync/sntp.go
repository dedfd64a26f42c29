// Package timesync sets the board clock from an SNTP server at boot.
package timesync

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	DefaultServer  = "pool.ntp.org:123"
	DefaultTimeout = 3 * time.Second

	packetLen = 48

	// Seconds from 1900-01-01 (NTP era 0) to 1970-01-01.
	ntpEpochOffset = 2208988800

	modeClient = 3
	modeServer = 4
	version    = 3
)

var (
	ErrShortReply      = errors.New("short SNTP reply")
	ErrNotServer       = errors.New("SNTP reply is not from a server")
	ErrUnsynchronized  = errors.New("SNTP server is unsynchronized")
	ErrZeroTransmitted = errors.New("SNTP reply carries no transmit time")
)

// Query sends one client request over conn and returns the server's
// transmit time. conn is typically a UDP socket to port 123.
func Query(conn net.Conn, timeout time.Duration) (time.Time, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return time.Time{}, err
	}

	req := make([]byte, packetLen)
	req[0] = version<<3 | modeClient
	if _, err := conn.Write(req); err != nil {
		return time.Time{}, fmt.Errorf("sntp request: %w", err)
	}

	resp := make([]byte, packetLen)
	n, err := conn.Read(resp)
	if err != nil {
		return time.Time{}, fmt.Errorf("sntp reply: %w", err)
	}
	return Parse(resp[:n])
}

// Parse extracts the transmit timestamp from a server reply.
func Parse(resp []byte) (time.Time, error) {
	if len(resp) < packetLen {
		return time.Time{}, ErrShortReply
	}
	if resp[0]&0x07 != modeServer {
		return time.Time{}, ErrNotServer
	}
	// Stratum 0 is a kiss-o'-death; leap indicator 3 means no sync.
	if resp[1] == 0 || resp[0]>>6 == 3 {
		return time.Time{}, ErrUnsynchronized
	}

	secs := binary.BigEndian.Uint32(resp[40:])
	frac := binary.BigEndian.Uint32(resp[44:])
	if secs == 0 && frac == 0 {
		return time.Time{}, ErrZeroTransmitted
	}

	nsec := (int64(frac) * int64(time.Second)) >> 32
	return time.Unix(int64(secs)-ntpEpochOffset, nsec).UTC(), nil
}

// Sync dials server over UDP and returns how far the local clock is behind
// the server's.
func Sync(server string, timeout time.Duration) (time.Duration, error) {
	conn, err := net.Dial("udp", server)
	if err != nil {
		return 0, fmt.Errorf("sntp dial %s: %w", server, err)
	}
	defer conn.Close()

	t, err := Query(conn, timeout)
	if err != nil {
		return 0, err
	}
	return t.Sub(time.Now()), nil
}
