// Package input turns the two navigation buttons into history navigation.
package input

import (
	"time"

	"github.com/tuffrabit/tinygo-js8-display/pkg/history"
)

// DefaultSettle is how long inputs are ignored after a press is acted on.
const DefaultSettle = 270 * time.Millisecond

// Button is a navigation button, usable as a bit in a mask.
type Button uint8

const (
	ButtonNext Button = 1 << iota
	ButtonPrev
)

func (b Button) String() string {
	switch b {
	case ButtonNext:
		return "next"
	case ButtonPrev:
		return "prev"
	default:
		return "none"
	}
}

// Poller reports which buttons are held right now.
type Poller interface {
	Pressed() Button
}

// PollerFunc adapts a function to Poller.
type PollerFunc func() Button

func (f PollerFunc) Pressed() Button { return f() }

// Handler samples the buttons once per tick. A held button is acted on, then
// all buttons are ignored until the settle window closes, so holding a button
// repeats once per settle interval. Next wins when both are held.
type Handler struct {
	poller Poller
	settle time.Duration
	until  time.Time
	last   Button
}

// NewHandler creates a handler. A non-positive settle uses DefaultSettle.
func NewHandler(poller Poller, settle time.Duration) *Handler {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Handler{
		poller: poller,
		settle: settle,
	}
}

// Poll returns the navigation to apply this tick, if any.
func (h *Handler) Poll(now time.Time) (history.Direction, bool) {
	if now.Before(h.until) {
		return 0, false
	}

	pressed := h.poller.Pressed()
	var d history.Direction
	switch {
	case pressed&ButtonNext != 0:
		d, h.last = history.Next, ButtonNext
	case pressed&ButtonPrev != 0:
		d, h.last = history.Prev, ButtonPrev
	default:
		return 0, false
	}

	h.until = now.Add(h.settle)
	return d, true
}

// Settling reports whether inputs are currently ignored.
func (h *Handler) Settling(now time.Time) bool {
	return now.Before(h.until)
}

// Last returns the button acted on most recently.
func (h *Handler) Last() Button {
	return h.last
}
