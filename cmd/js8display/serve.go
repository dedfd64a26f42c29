package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuffrabit/tinygo-js8-display/pkg/capture"
	"github.com/tuffrabit/tinygo-js8-display/pkg/replay"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		listen   string
		file     string
		dbPath   string
		typ      string
		interval time.Duration
		loop     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Replay recorded feed lines as a JS8Call TCP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (dbPath == "") {
				return errors.New("exactly one of --file or --db is required")
			}
			logger, err := g.logger(nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			lines, err := loadLines(ctx, file, dbPath, typ)
			if err != nil {
				return err
			}

			srv, err := replay.New(replay.Config{
				Lines:    lines,
				Interval: interval,
				Loop:     loop,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			logger.Info("serving", "addr", ln.Addr(), "lines", len(lines), "loop", loop)

			if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&listen, "listen", ":42442", "address to listen on")
	f.StringVar(&file, "file", "", "newline-delimited JSON file to replay")
	f.StringVar(&dbPath, "db", "", "capture database to replay")
	f.StringVar(&typ, "type", "", "only replay lines of this type (with --db)")
	f.DurationVar(&interval, "interval", replay.DefaultInterval, "gap between lines, negative for none")
	f.BoolVar(&loop, "loop", false, "start over after the last line")
	return cmd
}

func loadLines(ctx context.Context, file, dbPath, typ string) ([][]byte, error) {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return replay.ReadLines(f)
	}

	db, err := capture.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	captured, err := db.Lines(ctx, typ)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	lines := make([][]byte, len(captured))
	for i, l := range captured {
		lines[i] = l.Raw
	}
	return lines, nil
}
