//go:build tinygo && !nodebug

package display

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
)

const (
	// I2C configuration. The board's I2C0 header pins (A5/A4), shared with
	// the onboard IMU; GPIO0/GPIO1 belong to the log UART.
	monitorAddress = 0x3C
	MonitorSCL     = machine.I2C0_SCL_PIN
	MonitorSDA     = machine.I2C0_SDA_PIN

	monitorWidth  = 128
	monitorHeight = 64
	monitorRow    = 8
	monitorCols   = 30 // TomThumb is 4px wide

	rowInBytes   = 0
	rowInParsed  = 1
	rowOutBytes  = 2
	rowOutParsed = 3
)

var (
	off = color.RGBA{0, 0, 0, 0}
	on  = color.RGBA{255, 255, 255, 255}
)

// Monitor shows serial console traffic on an optional SSD1306 OLED: the
// incoming frame on the top rows and the response on the rows below.
// A nil *Monitor ignores every call.
//
// To build without it (saves RAM and flash), use:
//
//	tinygo build -tags=nodebug -target=nano-rp2040 -o firmware.uf2 .
type Monitor struct {
	dev *ssd1306.Device
}

// NewMonitor brings up the OLED on I2C0. Returns nil if the bus cannot be
// configured; the monitor is optional.
func NewMonitor() *Monitor {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000, // 400kHz fast mode
		SCL:       MonitorSCL,
		SDA:       MonitorSDA,
	}); err != nil {
		return nil
	}

	// Bus settle
	time.Sleep(10 * time.Millisecond)

	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address: monitorAddress,
		Width:   monitorWidth,
		Height:  monitorHeight,
	})
	dev.ClearDisplay()

	m := &Monitor{dev: dev}
	m.row(0, "JS8 Display console")
	m.row(1, "Waiting for data...")
	m.dev.Display()
	return m
}

// ShowIncoming draws a received frame on the top rows.
func (m *Monitor) ShowIncoming(bytesStr, parsedStr string) {
	if m == nil {
		return
	}
	m.row(rowInBytes, "I:"+bytesStr)
	m.row(rowInParsed, " "+parsedStr)
	m.dev.Display()
}

// ShowOutgoing draws a response on the rows below.
func (m *Monitor) ShowOutgoing(bytesStr, parsedStr string) {
	if m == nil {
		return
	}
	m.row(rowOutBytes, "O:"+bytesStr)
	m.row(rowOutParsed, " "+parsedStr)
	m.dev.Display()
}

// ShowError replaces the response rows with msg.
func (m *Monitor) ShowError(msg string) {
	if m == nil {
		return
	}
	m.row(rowOutBytes, "ERR:")
	m.row(rowOutParsed, msg)
	m.dev.Display()
}

// row clears text row r and writes s, truncated to fit.
func (m *Monitor) row(r int16, s string) {
	y := r * monitorRow
	for yy := y; yy < y+monitorRow; yy++ {
		for x := int16(0); x < monitorWidth; x++ {
			m.dev.SetPixel(x, yy, off)
		}
	}
	tinyfont.WriteLine(m.dev, &tinyfont.TomThumb, 0, y+monitorRow-2, truncate(s, monitorCols), on)
}

// truncate limits s to maxLen characters, marking the cut with "..".
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
