package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tuffrabit/tinygo-js8-display/pkg/app"
	"github.com/tuffrabit/tinygo-js8-display/pkg/config"
	"github.com/tuffrabit/tinygo-js8-display/pkg/display"
	"github.com/tuffrabit/tinygo-js8-display/pkg/emulator"
	"github.com/tuffrabit/tinygo-js8-display/pkg/feed"
	"github.com/tuffrabit/tinygo-js8-display/pkg/input"
)

func newViewCmd(g *globalFlags) *cobra.Command {
	s := config.Defaults()
	var (
		host     string
		port     uint16
		capacity int
		utcOff   int
		noClock  bool
		plain    bool
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the display in the terminal",
		Long: "Connects to a JS8Call TCP API (or a js8display serve) and renders the\n" +
			"display in the terminal. n and p step through history, q quits.\n" +
			"With --plain every redraw is printed as text instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if capacity < 1 || capacity > math.MaxUint8 {
				return fmt.Errorf("--capacity must be 1-%d", math.MaxUint8)
			}

			s.SetHost(host)
			s.Port = port
			s.Capacity = uint8(capacity)
			s.UTCOffsetMin = int16(utcOff)
			if noClock {
				s.Flags &^= config.FlagShowClock
			}
			if err := s.Validate(); err != nil {
				return err
			}

			if plain {
				logger, err := g.logger(nil)
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				return runPlain(ctx, s, cmd.OutOrStdout(), nil, logger)
			}

			// The terminal is busy with the display; logs go to --log-file or nowhere.
			logger, err := g.logger(io.Discard)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", s.Address())
			a, screen, keys := startView(s, nil, logger, time.Now())
			defer a.Feed().Close()

			logger.Info("viewing", "addr", s.Address(), "capacity", capacity)
			_, err = tea.NewProgram(emulator.New(a, screen, keys), tea.WithAltScreen()).Run()
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&host, "host", s.GetHost(), "JS8Call host")
	f.Uint16Var(&port, "port", s.Port, "JS8Call TCP API port")
	f.IntVar(&capacity, "capacity", int(s.Capacity), "messages kept in history")
	f.IntVar(&utcOff, "utc-offset", 0, "clock offset from UTC in minutes")
	f.BoolVar(&noClock, "no-clock", false, "hide the clock line")
	f.BoolVar(&plain, "plain", false, "print redraws as text, no buttons")
	return cmd
}

// startView builds the emulator's App and makes its first connection attempt.
func startView(s config.Settings, dial feed.DialFunc, logger *slog.Logger, now time.Time) (*app.App, *display.Screen, *emulator.Keys) {
	screen := display.NewScreen(emulator.Columns)
	keys := &emulator.Keys{}
	a := app.New(app.Config{
		Settings: s,
		Surface:  screen,
		Buttons:  keys,
		Dial:     dial,
		Logger:   logger,
	})
	a.Start(now)
	return a, screen, keys
}

// runPlain runs the App on a text surface until ctx is done.
func runPlain(ctx context.Context, s config.Settings, w io.Writer, dial feed.DialFunc, logger *slog.Logger) error {
	a := app.New(app.Config{
		Settings: s,
		Surface:  display.NewTextSurface(w, emulator.Columns),
		Buttons:  input.PollerFunc(func() input.Button { return 0 }),
		Dial:     dial,
		Logger:   logger,
	})
	err := a.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
