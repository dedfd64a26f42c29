// Package app runs the display: one cooperative loop that reads the feed,
// keeps history, drives the screen and answers the serial console.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tuffrabit/tinygo-js8-display/pkg/config"
	"github.com/tuffrabit/tinygo-js8-display/pkg/display"
	"github.com/tuffrabit/tinygo-js8-display/pkg/feed"
	"github.com/tuffrabit/tinygo-js8-display/pkg/history"
	"github.com/tuffrabit/tinygo-js8-display/pkg/input"
	"github.com/tuffrabit/tinygo-js8-display/pkg/message"
	"github.com/tuffrabit/tinygo-js8-display/pkg/protocol"
)

// TickInterval is how often Run calls Tick.
const TickInterval = 5 * time.Millisecond

// Console is polled once per tick; serial.Console satisfies it.
type Console interface {
	Poll() int
}

// Config wires an App to its hardware.
type Config struct {
	Settings config.Settings
	Surface  display.Surface
	Buttons  input.Poller
	Dial     feed.DialFunc // nil dials TCP
	Logger   *slog.Logger
}

// App owns every component; nothing here is safe for concurrent use.
type App struct {
	settings config.Settings
	log      *slog.Logger

	reader  *feed.Reader
	store   *history.Store
	screen  *display.Controller
	buttons *input.Handler
	console Console

	started   bool
	nextClock time.Time
	dropped   uint32
}

func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := cfg.Settings

	decay := display.Decay{
		Max:    s.BrightnessMax,
		Min:    s.BrightnessMin,
		Window: s.DecayWindow(),
	}

	return &App{
		settings: s,
		log:      logger,
		reader: feed.New(feed.Config{
			Address:        s.Address(),
			ReconnectDelay: s.ReconnectDelay(),
			Dial:           cfg.Dial,
			Logger:         logger.With("component", "feed"),
		}),
		store:   history.New(int(s.Capacity)),
		screen:  display.NewController(cfg.Surface, decay, s.Zone(), logger.With("component", "display")),
		buttons: input.NewHandler(cfg.Buttons, s.Settle()),
	}
}

// SetConsole attaches the serial console. It is separate from New because
// the console's protocol handler reports this App's Status.
func (a *App) SetConsole(c Console) {
	a.console = c
}

// Start makes the first feed connection attempt, showing its progress on
// the screen. A failure is not fatal: the feed keeps retrying from Tick.
// Calling Start again does nothing.
func (a *App) Start(now time.Time) {
	if a.started {
		return
	}
	a.started = true

	host := a.settings.GetHost()
	a.screen.Status("Connecting to " + host + "...")
	if err := a.reader.Connect(now); err != nil {
		a.log.Warn("connection failed", "addr", a.reader.Address(), "err", err)
		a.screen.Status("Connection failed.")
		return
	}
	a.log.Info("connected", "addr", a.reader.Address())
	a.screen.Status("Connected to " + host)
}

// Tick advances everything by one step. It never blocks beyond the feed's
// read timeout.
func (a *App) Tick(now time.Time) {
	if !a.started {
		a.Start(now)
	}

	a.ingest(now)

	a.screen.Tick(a.store, now)

	if a.settings.ShowClock() && !now.Before(a.nextClock) {
		a.screen.Clock(now)
		a.nextClock = now.Add(a.settings.ClockRefresh())
	}

	if d, ok := a.buttons.Poll(now); ok && a.store.Len() > 0 {
		a.store.Navigate(d)
		a.log.Debug("navigate", "dir", d, "position", a.store.Position())
		a.screen.Render(a.store, now)
	}

	if a.console != nil {
		a.console.Poll()
	}
}

// ingest decodes every line the feed has ready and shows the newest message.
func (a *App) ingest(now time.Time) {
	lines := a.reader.Poll(now)
	if len(lines) == 0 {
		return
	}

	inserted := false
	for _, l := range lines {
		if l.Truncated {
			a.reject(&message.Rejection{Reason: message.Oversized}, l.Data)
			continue
		}
		m, err := message.Decode(l.Data, now)
		if err != nil {
			a.reject(err, l.Data)
			continue
		}
		a.store.Insert(m)
		inserted = true
		a.log.Info("message", "from", m.From, "to", m.To, "snr", m.SNR, "offset", m.Offset)
	}

	if inserted {
		a.screen.Render(a.store, now)
	}
}

func (a *App) reject(err error, line []byte) {
	var rej *message.Rejection
	if errors.As(err, &rej) && !rej.Reason.Logged() {
		return
	}
	a.dropped++
	a.log.Warn("line dropped", "err", err, "bytes", len(line))
}

// Run ticks every TickInterval until ctx is done, then closes the feed.
func (a *App) Run(ctx context.Context) error {
	a.Start(time.Now())

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.reader.Close()
			return ctx.Err()
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

// Status implements protocol.StatusSource.
func (a *App) Status() protocol.Status {
	stats := a.reader.Stats()
	return protocol.Status{
		State:      uint8(a.reader.State()),
		Retained:   uint8(a.store.Len()),
		Total:      uint32(a.store.Total()),
		Dropped:    a.dropped,
		Reconnects: stats.Reconnects,
	}
}

// Store exposes history for inspection.
func (a *App) Store() *history.Store {
	return a.store
}

// Feed exposes the feed reader for inspection.
func (a *App) Feed() *feed.Reader {
	return a.reader
}
