package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/tuffrabit/tinygo-js8-display/pkg/history"
	"github.com/tuffrabit/tinygo-js8-display/pkg/message"
)

var t0 = time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC)

func TestBrightnessEndpoints(t *testing.T) {
	d := DefaultDecay

	if b := d.Brightness(0); b != 220 {
		t.Errorf("age 0: expected 220, got %d", b)
	}
	if b := d.Brightness(15 * time.Second); b != 115 {
		t.Errorf("age 15s: expected 115, got %d", b)
	}
	if b := d.Brightness(29999 * time.Millisecond); b != 11 {
		t.Errorf("age 29.999s: expected 11, got %d", b)
	}
	for _, age := range []time.Duration{30 * time.Second, 31 * time.Second, time.Hour, 1000 * time.Hour} {
		if b := d.Brightness(age); b != 10 {
			t.Errorf("age %v: expected 10, got %d", age, b)
		}
	}
	if b := d.Brightness(-time.Second); b != 220 {
		t.Errorf("negative age: expected 220, got %d", b)
	}
}

func TestBrightnessMatchesReferenceFormula(t *testing.T) {
	d := DefaultDecay
	prev := uint8(255)
	for ms := int64(0); ms < 30000; ms++ {
		got := d.Brightness(time.Duration(ms) * time.Millisecond)
		want := uint8(220 - ms*210/30000)
		if got != want {
			t.Fatalf("age %dms: expected %d, got %d", ms, want, got)
		}
		if got > prev {
			t.Fatalf("age %dms: brightness rose from %d to %d", ms, prev, got)
		}
		prev = got
	}
}

func TestBrightnessDegenerateDecay(t *testing.T) {
	if b := (Decay{Max: 200, Min: 50}).Brightness(0); b != 50 {
		t.Errorf("zero window: expected min 50, got %d", b)
	}
	if b := (Decay{Max: 10, Min: 10, Window: time.Second}).Brightness(0); b != 10 {
		t.Errorf("flat ramp: expected 10, got %d", b)
	}
}

func newStore(texts ...string) *history.Store {
	s := history.New(history.DefaultCapacity)
	for i, text := range texts {
		s.Insert(message.Message{
			From:    "K1ABC",
			To:      "K2XYZ",
			Offset:  1500,
			SNR:     -5,
			Text:    text,
			Arrived: t0.Add(time.Duration(i) * 10 * time.Second),
		})
	}
	return s
}

func TestRenderFrame(t *testing.T) {
	screen := NewScreen(21)
	c := NewController(screen, DefaultDecay, nil, nil)
	store := newStore("first", "HELLO FROM THE FIELD STATION TODAY")

	c.Render(store, store.Snapshot()[1].Arrived)

	f := screen.Frame
	if f.ID != "id:2" {
		t.Errorf("ID: expected id:2, got %s", f.ID)
	}
	if f.Header != "K1ABC > K2XYZ" {
		t.Errorf("Header: expected 'K1ABC > K2XYZ', got %q", f.Header)
	}
	if f.Signal != "SNR: -5 @1500" {
		t.Errorf("Signal: expected 'SNR: -5 @1500', got %q", f.Signal)
	}
	if len(f.Body) < 2 {
		t.Fatalf("Body: expected wrapped lines, got %v", f.Body)
	}
	for _, line := range f.Body {
		if ansi.StringWidth(line) > 21 {
			t.Errorf("Body line %q wider than 21", line)
		}
	}
	if level, ok := c.Backlight(); !ok || level != 220 {
		t.Errorf("Backlight: expected 220, got %d (set=%v)", level, ok)
	}
}

func TestRenderEmptyStore(t *testing.T) {
	screen := NewScreen(21)
	c := NewController(screen, DefaultDecay, nil, nil)

	c.Render(history.New(5), t0)
	c.Tick(history.New(5), t0)

	if screen.Redraws != 0 {
		t.Errorf("Redraws: expected 0, got %d", screen.Redraws)
	}
	if _, ok := c.Backlight(); ok {
		t.Error("backlight should be untouched on an empty store")
	}
}

func TestTickDimsAndReanchors(t *testing.T) {
	screen := NewScreen(21)
	c := NewController(screen, DefaultDecay, nil, nil)
	store := newStore("old", "new") // arrived t0 and t0+10s

	now := t0.Add(10 * time.Second)
	c.Render(store, now)
	if screen.Level != 220 {
		t.Errorf("newest at age 0: expected 220, got %d", screen.Level)
	}

	c.Tick(store, now.Add(15*time.Second))
	if screen.Level != 115 {
		t.Errorf("newest at age 15s: expected 115, got %d", screen.Level)
	}

	// Showing the older message re-anchors the age to its own timestamp.
	store.Navigate(history.Prev)
	c.Render(store, now.Add(15*time.Second))
	if screen.Level != 45 {
		t.Errorf("older at age 25s: expected 45, got %d", screen.Level)
	}
}

func TestTickWritesOnlyOnChange(t *testing.T) {
	counter := &countingSurface{Screen: NewScreen(21)}
	c := NewController(counter, DefaultDecay, nil, nil)
	store := newStore("x")

	for i := 0; i < 10; i++ {
		c.Tick(store, t0.Add(time.Duration(i)*time.Millisecond))
	}
	if counter.backlights != 1 {
		t.Errorf("backlight writes: expected 1, got %d", counter.backlights)
	}
	c.Tick(store, t0.Add(time.Second))
	if counter.backlights != 2 {
		t.Errorf("backlight writes after change: expected 2, got %d", counter.backlights)
	}
}

func TestClockLeavesMessageAlone(t *testing.T) {
	screen := NewScreen(21)
	c := NewController(screen, DefaultDecay, time.FixedZone("EST", -5*3600), nil)
	store := newStore("hello")
	c.Render(store, t0)
	redraws := screen.Redraws

	c.Clock(t0)

	if screen.Clock != "07-Mar 09:05" {
		t.Errorf("Clock: expected '07-Mar 09:05', got %q", screen.Clock)
	}
	if c.LastClock() != screen.Clock {
		t.Errorf("LastClock: expected %q, got %q", screen.Clock, c.LastClock())
	}
	if screen.Redraws != redraws {
		t.Errorf("clock refresh redrew the message region")
	}
}

func TestFormatClock(t *testing.T) {
	got := FormatClock(time.Date(2024, 12, 1, 3, 7, 59, 0, time.UTC), time.UTC)
	if got != "01-Dec 03:07" {
		t.Errorf("expected '01-Dec 03:07', got %q", got)
	}
}

func TestStatus(t *testing.T) {
	screen := NewScreen(21)
	c := NewController(screen, DefaultDecay, nil, nil)

	c.Status("Connecting to WiFi...", "WiFi Connected!")
	if strings.Join(screen.Status, "|") != "Connecting to WiFi...|WiFi Connected!" {
		t.Errorf("Status: got %v", screen.Status)
	}

	c.Render(newStore("hi"), t0)
	if screen.Status != nil {
		t.Error("message render should replace the status screen")
	}
}

func TestDrawErrorsAreNotFatal(t *testing.T) {
	c := NewController(failingSurface{}, DefaultDecay, nil, nil)
	store := newStore("x")

	c.Render(store, t0)
	c.Clock(t0)
	c.Status("x")

	if _, ok := c.Backlight(); ok {
		t.Error("failed backlight write should not be recorded")
	}
	if c.LastClock() != "" {
		t.Error("failed clock draw should not be recorded")
	}
}

func TestWrap(t *testing.T) {
	if Wrap("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
	if got := Wrap("no width", 0); len(got) != 1 || got[0] != "no width" {
		t.Errorf("zero width: got %v", got)
	}

	text := "CQ CQ DE K1ABC FN42 QSL?"
	got := Wrap(text, 8)
	for _, line := range got {
		if ansi.StringWidth(line) > 8 {
			t.Errorf("line %q wider than 8", line)
		}
	}
	joined := strings.ReplaceAll(strings.Join(got, ""), " ", "")
	if joined != strings.ReplaceAll(text, " ", "") {
		t.Errorf("wrapping lost text: %v", got)
	}
}

func TestTextSurface(t *testing.T) {
	var buf bytes.Buffer
	c := NewController(NewTextSurface(&buf, 0), DefaultDecay, nil, nil)

	c.Render(newStore("HELLO"), t0)
	c.Clock(t0)

	out := buf.String()
	for _, want := range []string{"[backlight] 220", "[id:1] K1ABC > K2XYZ", "SNR: -5 @1500", "HELLO", "[clock] 07-Mar 14:05"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScreenLines(t *testing.T) {
	screen := NewScreen(20)
	c := NewController(screen, DefaultDecay, nil, nil)
	c.Render(newStore("HELLO"), t0)
	c.Clock(t0)

	lines := screen.Lines()
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %v", lines)
	}
	if lines[0] != "K1ABC > K2XYZ   id:1" {
		t.Errorf("header line: got %q", lines[0])
	}
	if lines[3] != "07-Mar 14:05" {
		t.Errorf("clock line: got %q", lines[3])
	}
}

type countingSurface struct {
	*Screen
	backlights int
}

func (c *countingSurface) SetBacklight(level uint8) error {
	c.backlights++
	return c.Screen.SetBacklight(level)
}

var errPanel = errors.New("panel offline")

type failingSurface struct{}

func (failingSurface) DrawMessage(Frame) error   { return errPanel }
func (failingSurface) DrawClock(string) error    { return errPanel }
func (failingSurface) DrawStatus([]string) error { return errPanel }
func (failingSurface) SetBacklight(uint8) error  { return errPanel }
func (failingSurface) Columns() int              { return 0 }
