//go:build tinygo

package display

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/st7789"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
)

const (
	// freemono 9pt metrics
	glyphWidth = 11
	lineHeight = 18
	baseline   = 13

	clockHeight = 20
	idWidth     = 60
)

var (
	black = color.RGBA{0, 0, 0, 255}
	white = color.RGBA{255, 255, 255, 255}
	grey  = color.RGBA{160, 160, 160, 255}
)

// PWM is the part of a TinyGo PWM peripheral the backlight needs.
type PWM interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// TFT draws on an ST7789 panel with a PWM-driven backlight. The bottom
// clockHeight pixels are the clock region; everything above is the message
// region.
type TFT struct {
	dev     *st7789.Device
	pwm     PWM
	channel uint8
	width   int16
	height  int16
	font    *tinyfont.Font
}

// NewTFT wraps a configured panel. The backlight pin must not have been
// passed to st7789.New; it is driven here at 5 kHz.
func NewTFT(dev *st7789.Device, pwm PWM, backlight machine.Pin) (*TFT, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: 1e9 / 5000}); err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(backlight)
	if err != nil {
		return nil, err
	}

	w, h := dev.Size()
	t := &TFT{
		dev:     dev,
		pwm:     pwm,
		channel: ch,
		width:   w,
		height:  h,
		font:    &freemono.Regular9pt7b,
	}
	dev.FillScreen(black)
	return t, nil
}

func (t *TFT) DrawMessage(f Frame) error {
	if err := t.dev.FillRectangle(0, 0, t.width, t.height-clockHeight, black); err != nil {
		return err
	}

	t.text(t.width-idWidth, 0, f.ID, grey)
	t.text(0, 0, f.Header, white)
	t.text(0, 1, f.Signal, white)

	rows := int((t.height-clockHeight)/lineHeight) - 2
	for i, line := range f.Body {
		if i >= rows {
			break
		}
		t.text(0, int16(i+2), line, white)
	}
	return nil
}

func (t *TFT) DrawClock(text string) error {
	y := t.height - clockHeight
	if err := t.dev.FillRectangle(0, y, t.width, clockHeight, black); err != nil {
		return err
	}
	tinyfont.WriteLine(t.dev, t.font, 0, y+baseline+2, text, grey)
	return nil
}

func (t *TFT) DrawStatus(lines []string) error {
	t.dev.FillScreen(black)
	for i, line := range lines {
		t.text(0, int16(i), line, white)
	}
	return nil
}

// SetBacklight maps 0-255 onto the PWM duty cycle.
func (t *TFT) SetBacklight(level uint8) error {
	t.pwm.Set(t.channel, t.pwm.Top()/255*uint32(level))
	return nil
}

func (t *TFT) Columns() int {
	return int(t.width / glyphWidth)
}

// text draws s on the given text row, x in pixels.
func (t *TFT) text(x, row int16, s string, c color.RGBA) {
	tinyfont.WriteLine(t.dev, t.font, x, row*lineHeight+baseline, s, c)
}
