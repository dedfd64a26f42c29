// Package feed maintains the TCP connection to the JS8Call API and splits the
// stream into lines.
//
// The reader never blocks the caller for longer than a read deadline or a
// dial timeout. When the connection drops it waits out a fixed delay, then
// tries once per delay until a dial succeeds, forever.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultMaxLine        = 2048
	DefaultDialTimeout    = 3 * time.Second
	DefaultReadTimeout    = time.Millisecond

	chunkSize    = 512
	readsPerPoll = 8
)

var ErrNotConnected = errors.New("feed not connected")

// State is the connection state.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// DialFunc opens a connection. net.Dial has this shape.
type DialFunc func(network, address string) (net.Conn, error)

// Config configures a Reader. Zero values take the defaults above.
type Config struct {
	Address        string
	ReconnectDelay time.Duration
	MaxLine        int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	Dial           DialFunc
	Logger         *slog.Logger
}

// Line is one newline-terminated line from the feed, without the terminator.
// Truncated lines exceeded MaxLine; Data holds only their first MaxLine bytes
// and the rest of the line was discarded.
type Line struct {
	Data      []byte
	Truncated bool
}

// Stats counts reader activity since creation.
type Stats struct {
	Lines      uint32 // Complete lines delivered
	Oversized  uint32 // Lines cut at MaxLine
	Drops      uint32 // Connection losses
	Attempts   uint32 // Reconnect attempts after a loss or failed connect
	Reconnects uint32 // Attempts that succeeded
}

// Reader owns the feed connection.
type Reader struct {
	cfg        Config
	log        *slog.Logger
	conn       net.Conn
	state      State
	retryAt    time.Time
	buf        []byte
	chunk      []byte
	discarding bool
	stopped    bool
	stats      Stats
}

// New creates a disconnected reader. Call Connect for the first attempt.
func New(cfg Config) *Reader {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Dial == nil {
		timeout := cfg.DialTimeout
		cfg.Dial = func(network, address string) (net.Conn, error) {
			return net.DialTimeout(network, address, timeout)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Reader{
		cfg:   cfg,
		log:   logger.With("addr", cfg.Address),
		buf:   make([]byte, 0, cfg.MaxLine),
		chunk: make([]byte, chunkSize),
	}
}

// Connect makes a single connection attempt. On failure the next attempt is
// scheduled one reconnect delay after now.
func (r *Reader) Connect(now time.Time) error {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}

	r.stopped = false
	r.state = Connecting
	conn, err := r.cfg.Dial("tcp", r.cfg.Address)
	if err != nil {
		r.state = Disconnected
		r.retryAt = now.Add(r.cfg.ReconnectDelay)
		return fmt.Errorf("connect %s: %w", r.cfg.Address, err)
	}

	r.conn = conn
	r.state = Connected
	r.buf = r.buf[:0]
	r.discarding = false
	return nil
}

// Poll returns the complete lines that arrived since the last call, in order.
// While disconnected it returns nothing, except that once the reconnect delay
// has passed it makes one connection attempt.
func (r *Reader) Poll(now time.Time) []Line {
	if r.state != Connected {
		if r.stopped || now.Before(r.retryAt) {
			return nil
		}
		r.stats.Attempts++
		r.log.Info("reconnecting", "attempt", r.stats.Attempts)
		if err := r.Connect(now); err != nil {
			r.log.Warn("reconnect failed", "err", err, "retry_in", r.cfg.ReconnectDelay)
			return nil
		}
		r.stats.Reconnects++
		r.log.Info("reconnected")
	}

	var lines []Line
	for i := 0; i < readsPerPoll; i++ {
		r.conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
		n, err := r.conn.Read(r.chunk)
		if n > 0 {
			lines = r.split(r.chunk[:n], lines)
		}
		if err != nil {
			if !isTimeout(err) {
				r.drop(now, err)
			}
			break
		}
		if n < len(r.chunk) {
			break
		}
	}
	return lines
}

// split appends every line completed by data to lines.
func (r *Reader) split(data []byte, lines []Line) []Line {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return r.accumulate(data, lines)
		}
		lines = r.accumulate(data[:i], lines)
		data = data[i+1:]

		if r.discarding {
			r.discarding = false
			r.buf = r.buf[:0]
			continue
		}
		line := bytes.TrimSuffix(r.buf, []byte{'\r'})
		if len(line) > 0 {
			lines = append(lines, Line{Data: bytes.Clone(line)})
			r.stats.Lines++
		}
		r.buf = r.buf[:0]
	}
	return lines
}

// accumulate adds part of a line to the buffer. The first time a line would
// exceed MaxLine its prefix is emitted as truncated and the remainder is
// skipped up to the next newline.
func (r *Reader) accumulate(p []byte, lines []Line) []Line {
	if r.discarding {
		return lines
	}
	if room := r.cfg.MaxLine - len(r.buf); len(p) > room {
		r.buf = append(r.buf, p[:room]...)
		lines = append(lines, Line{Data: bytes.Clone(r.buf), Truncated: true})
		r.buf = r.buf[:0]
		r.discarding = true
		r.stats.Oversized++
		return lines
	}
	r.buf = append(r.buf, p...)
	return lines
}

// drop tears down a dead connection and schedules the next attempt.
func (r *Reader) drop(now time.Time, cause error) {
	r.log.Warn("disconnected from server", "err", cause, "retry_in", r.cfg.ReconnectDelay)
	r.conn.Close()
	r.conn = nil
	r.state = Disconnected
	r.retryAt = now.Add(r.cfg.ReconnectDelay)
	r.buf = r.buf[:0]
	r.discarding = false
	r.stats.Drops++
}

// State returns the connection state.
func (r *Reader) State() State {
	return r.state
}

// RetryAt returns when the next reconnect attempt is due while disconnected.
func (r *Reader) RetryAt() time.Time {
	return r.retryAt
}

// Stats returns the activity counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Address returns the configured host:port.
func (r *Reader) Address() string {
	return r.cfg.Address
}

// Close closes the connection, if any. The reader stays disconnected until
// Connect is called again.
func (r *Reader) Close() error {
	r.state = Disconnected
	r.stopped = true
	if r.conn == nil {
		return ErrNotConnected
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
