package display

import (
	"fmt"
	"io"
	"strings"
)

// Screen is an in-memory Surface. It keeps the latest content of every region
// and counts redraws; the host emulator renders from it.
type Screen struct {
	Frame     Frame
	Clock     string
	Status    []string
	Level     uint8
	Cols      int
	Redraws   int
	ClockDraw int
}

// NewScreen creates a screen that wraps message bodies at columns.
func NewScreen(columns int) *Screen {
	return &Screen{Cols: columns}
}

func (s *Screen) DrawMessage(f Frame) error {
	s.Frame = f
	s.Status = nil
	s.Redraws++
	return nil
}

func (s *Screen) DrawClock(text string) error {
	s.Clock = text
	s.ClockDraw++
	return nil
}

func (s *Screen) DrawStatus(lines []string) error {
	s.Status = append([]string(nil), lines...)
	s.Frame = Frame{}
	return nil
}

func (s *Screen) SetBacklight(level uint8) error {
	s.Level = level
	return nil
}

func (s *Screen) Columns() int {
	return s.Cols
}

// Lines returns the screen content top to bottom, clock last.
func (s *Screen) Lines() []string {
	var lines []string
	if len(s.Status) > 0 {
		lines = append(lines, s.Status...)
	} else if s.Frame.Header != "" {
		header := s.Frame.Header
		if pad := s.Cols - len(header) - len(s.Frame.ID); pad > 0 {
			header += strings.Repeat(" ", pad)
		} else {
			header += " "
		}
		lines = append(lines, header+s.Frame.ID, s.Frame.Signal)
		lines = append(lines, s.Frame.Body...)
	}
	if s.Clock != "" {
		lines = append(lines, s.Clock)
	}
	return lines
}

// TextSurface writes every redraw as plain text, one region per write. The
// firmware falls back to it on the log UART when the panel fails, and
// js8display view --plain prints with it.
type TextSurface struct {
	w       io.Writer
	columns int
}

// NewTextSurface creates a text surface on w.
func NewTextSurface(w io.Writer, columns int) *TextSurface {
	return &TextSurface{w: w, columns: columns}
}

func (t *TextSurface) DrawMessage(f Frame) error {
	_, err := fmt.Fprintf(t.w, "[%s] %s\n%s\n%s\n", f.ID, f.Header, f.Signal, strings.Join(f.Body, "\n"))
	return err
}

func (t *TextSurface) DrawClock(text string) error {
	_, err := fmt.Fprintf(t.w, "[clock] %s\n", text)
	return err
}

func (t *TextSurface) DrawStatus(lines []string) error {
	_, err := fmt.Fprintf(t.w, "[status] %s\n", strings.Join(lines, " / "))
	return err
}

func (t *TextSurface) SetBacklight(level uint8) error {
	_, err := fmt.Fprintf(t.w, "[backlight] %d\n", level)
	return err
}

func (t *TextSurface) Columns() int {
	return t.columns
}
