//go:build tinygo

package main

import (
	"context"
	"log/slog"
	"machine"
	"runtime"
	"time"

	"github.com/tuffrabit/tinygo-js8-display/pkg/app"
	"github.com/tuffrabit/tinygo-js8-display/pkg/config"
	"github.com/tuffrabit/tinygo-js8-display/pkg/display"
	"github.com/tuffrabit/tinygo-js8-display/pkg/input"
	"github.com/tuffrabit/tinygo-js8-display/pkg/protocol"
	"github.com/tuffrabit/tinygo-js8-display/pkg/storage"
	"github.com/tuffrabit/tinygo-js8-display/pkg/timesync"
	"github.com/tuffrabit/tinygo-js8-display/serial"

	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/netlink/probe"
	"tinygo.org/x/drivers/st7789"
)

// Arduino Nano RP2040 Connect wiring.
const (
	pinSCK       = machine.D13
	pinSDO       = machine.D11
	pinCS        = machine.D10
	pinDC        = machine.D9
	pinReset     = machine.D8
	pinBacklight = machine.D6 // GPIO18, PWM slice 1
	pinNext      = machine.D2
	pinPrev      = machine.D3

	// Logs: UART0 TX on GPIO0 (D1/TX). The debug OLED, when built in, sits
	// on I2C0 at A4 (SDA, GPIO12) and A5 (SCL, GPIO13); see display.Monitor.
)

var backlightPWM = machine.PWM1

const wifiRetry = 500 * time.Millisecond

// textColumns matches the TFT's text width.
const textColumns = 21

func main() {
	// Logs go to the hardware UART so USB CDC carries only protocol frames.
	machine.DefaultUART.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := slog.New(slog.NewTextHandler(machine.DefaultUART, &slog.HandlerOptions{Level: slog.LevelInfo}))

	defaults := config.Defaults()
	settings := defaults

	flash, err := storage.New(machine.Flash, true)
	if err != nil {
		logger.Error("storage unavailable, using compiled-in settings", "err", err)
	} else if settings, err = flash.Resolve(defaults); err != nil {
		logger.Warn("stored settings ignored", "err", err)
	}

	var surface display.Surface
	if tft, err := newTFT(); err != nil {
		logger.Error("display setup failed, drawing to the log UART", "err", err)
		surface = display.NewTextSurface(machine.DefaultUART, textColumns)
	} else {
		surface = tft
	}
	surface.SetBacklight(settings.BrightnessMax)

	boot := []string{"Connecting to WiFi..."}
	surface.DrawStatus(boot)
	connectWiFi(settings, logger)
	boot = append(boot, "WiFi Connected!")
	surface.DrawStatus(boot)

	if offset, err := timesync.Sync(timesync.DefaultServer, timesync.DefaultTimeout); err != nil {
		logger.Warn("time sync failed, clock starts at boot", "err", err)
	} else {
		runtime.AdjustTimeOffset(int64(offset))
		logger.Info("clock set", "now", time.Now().UTC())
	}

	a := app.New(app.Config{
		Settings: settings,
		Surface:  surface,
		Buttons:  input.NewPins(pinNext, pinPrev),
		Logger:   logger,
	})

	if flash != nil {
		h := protocol.NewHandler(flash, defaults, a)
		a.SetConsole(serial.NewConsole(machine.Serial, h, display.NewMonitor(), logger.With("component", "console")))
	}

	a.Run(context.Background())
}

// newTFT brings up a 240x135 ST7789 on SPI0 in landscape.
func newTFT() (*display.TFT, error) {
	machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 16_000_000,
		SCK:       pinSCK,
		SDO:       pinSDO,
		Mode:      0,
	})

	// The backlight is driven by PWM in display.TFT, not by the driver.
	dev := st7789.New(machine.SPI0, pinReset, pinDC, pinCS, machine.NoPin)
	dev.Configure(st7789.Config{
		Width:        135,
		Height:       240,
		Rotation:     st7789.ROTATION_90,
		RowOffset:    40,
		ColumnOffset: 53,
	})

	return display.NewTFT(&dev, backlightPWM, pinBacklight)
}

// connectWiFi blocks until the access point accepts us.
func connectWiFi(s config.Settings, logger *slog.Logger) {
	link, _ := probe.Probe()
	params := &netlink.ConnectParams{
		Ssid:       s.GetSSID(),
		Passphrase: s.GetPassphrase(),
	}

	for {
		err := link.NetConnect(params)
		if err == nil {
			logger.Info("wifi connected", "ssid", params.Ssid)
			return
		}
		logger.Warn("wifi connect failed", "ssid", params.Ssid, "err", err)
		time.Sleep(wifiRetry)
	}
}
