// Package display renders the message under the cursor, dims the backlight as
// that message ages and keeps a clock line current.
//
// Drawing primitives live behind Surface; the TFT implementation is only
// built by TinyGo, the text implementation works anywhere.
package display

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/tuffrabit/tinygo-js8-display/pkg/history"
)

const (
	DefaultBrightnessMax = 220
	DefaultBrightnessMin = 10
	DefaultDecayWindow   = 30 * time.Second

	// ClockLayout renders day-month hour:minute, e.g. "07-Mar 14:05".
	ClockLayout = "02-Jan 15:04"
)

// Frame is the full message view.
type Frame struct {
	ID     string   // "id:<position>", drawn top right
	Header string   // "FROM > TO"
	Signal string   // "SNR: <snr> @<offset>"
	Body   []string // Message text wrapped to the surface width
}

// Surface is the drawing target. Message, clock and status are independent
// regions; DrawMessage must leave the clock region alone and vice versa.
type Surface interface {
	DrawMessage(f Frame) error
	DrawClock(text string) error
	DrawStatus(lines []string) error
	SetBacklight(level uint8) error
	Columns() int
}

// Decay maps message age to backlight level.
type Decay struct {
	Max    uint8
	Min    uint8
	Window time.Duration
}

// DefaultDecay is the 220 → 10 ramp over 30 s.
var DefaultDecay = Decay{Max: DefaultBrightnessMax, Min: DefaultBrightnessMin, Window: DefaultDecayWindow}

// Brightness falls linearly from Max at age 0 to Min at Window and stays at
// Min afterwards. Integer millisecond arithmetic keeps the defaults exactly
// 220 - age*210/30000.
func (d Decay) Brightness(age time.Duration) uint8 {
	if age < 0 {
		age = 0
	}
	window := d.Window.Milliseconds()
	ms := age.Milliseconds()
	if window <= 0 || ms >= window || d.Max <= d.Min {
		return d.Min
	}
	span := int64(d.Max) - int64(d.Min)
	return uint8(int64(d.Max) - ms*span/window)
}

// Controller owns the surface and decides what to redraw.
type Controller struct {
	surface  Surface
	decay    Decay
	zone     *time.Location
	log      *slog.Logger
	level    uint8
	levelSet bool
	clock    string
}

// NewController creates a controller drawing on surface. A nil zone means UTC.
func NewController(surface Surface, decay Decay, zone *time.Location, logger *slog.Logger) *Controller {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		surface: surface,
		decay:   decay,
		zone:    zone,
		log:     logger,
	}
}

// Render redraws the message region for the store's current message and sets
// the backlight for its age. An empty store draws nothing.
func (c *Controller) Render(store *history.Store, now time.Time) {
	m, ok := store.Current()
	if !ok {
		return
	}

	c.Tick(store, now)

	f := Frame{
		ID:     fmt.Sprintf("id:%d", store.Position()),
		Header: m.From + " > " + m.To,
		Signal: fmt.Sprintf("SNR: %d @%d", m.SNR, m.Offset),
		Body:   Wrap(m.Text, c.surface.Columns()),
	}
	if err := c.surface.DrawMessage(f); err != nil {
		c.log.Warn("draw message failed", "err", err)
	}
}

// Tick recomputes the backlight from the shown message's age. The surface is
// only touched when the level changes.
func (c *Controller) Tick(store *history.Store, now time.Time) {
	m, ok := store.Current()
	if !ok {
		return
	}
	level := c.decay.Brightness(m.Age(now))
	if c.levelSet && level == c.level {
		return
	}
	if err := c.surface.SetBacklight(level); err != nil {
		c.log.Warn("set backlight failed", "err", err)
		return
	}
	c.level = level
	c.levelSet = true
}

// Clock redraws the clock region with now in the controller's zone.
func (c *Controller) Clock(now time.Time) {
	text := FormatClock(now, c.zone)
	if err := c.surface.DrawClock(text); err != nil {
		c.log.Warn("draw clock failed", "err", err)
		return
	}
	c.clock = text
}

// Status replaces the screen with status lines, used before any message has
// arrived.
func (c *Controller) Status(lines ...string) {
	if err := c.surface.DrawStatus(lines); err != nil {
		c.log.Warn("draw status failed", "err", err)
	}
}

// Backlight returns the last level written and whether one has been written.
func (c *Controller) Backlight() (uint8, bool) {
	return c.level, c.levelSet
}

// LastClock returns the last clock text drawn.
func (c *Controller) LastClock() string {
	return c.clock
}

// FormatClock renders t as "DD-Mon HH:MM" in zone.
func FormatClock(t time.Time, zone *time.Location) string {
	return t.In(zone).Format(ClockLayout)
}

// Wrap breaks text into lines of at most columns cells, preferring word
// boundaries. Non-positive columns returns the text as a single line.
func Wrap(text string, columns int) []string {
	if text == "" {
		return nil
	}
	if columns <= 0 {
		return []string{text}
	}
	return strings.Split(ansi.Wrap(text, columns, ""), "\n")
}
