// Package replay stands in for JS8Call: it serves recorded feed lines to
// every client that connects, paced like live traffic.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultInterval is the gap between replayed lines.
const DefaultInterval = 2 * time.Second

var ErrNoLines = errors.New("nothing to replay")

// Config configures a Server.
type Config struct {
	Lines    [][]byte      // Without trailing newlines
	Interval time.Duration // Zero means DefaultInterval; negative means unpaced
	Loop     bool          // Start over after the last line
	Logger   *slog.Logger
}

// Server replays Lines to each connection independently.
type Server struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if len(cfg.Lines) == 0 {
		return nil, ErrNoLines
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, log: logger}, nil
}

// Serve accepts connections on ln until ctx is done. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			s.log.Info("client connected", "remote", conn.RemoteAddr())
			g.Go(func() error {
				defer conn.Close()
				n, err := s.Stream(ctx, conn)
				s.log.Info("client done", "remote", conn.RemoteAddr(), "lines", n, "err", err)
				// A client hanging up is not a server failure.
				return nil
			})
		}
	})

	return g.Wait()
}

// Stream writes the lines to w, one per limiter token, and returns how many
// were written. It stops at the end of Lines unless Loop is set.
func (s *Server) Stream(ctx context.Context, w io.Writer) (int, error) {
	limit := rate.Inf
	if s.cfg.Interval > 0 {
		limit = rate.Every(s.cfg.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var buf []byte
	written := 0
	for {
		for _, line := range s.cfg.Lines {
			if err := limiter.Wait(ctx); err != nil {
				return written, err
			}
			buf = append(append(buf[:0], line...), '\n')
			if _, err := w.Write(buf); err != nil {
				return written, err
			}
			written++
		}
		if !s.cfg.Loop {
			return written, nil
		}
	}
}

// ReadLines reads newline-delimited lines from r, skipping blank ones.
func ReadLines(r io.Reader) ([][]byte, error) {
	var lines [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	return lines, sc.Err()
}
