// Package config defines the display's settings and their fixed binary layout.
// The compiled-in Defaults are the configuration; a copy saved to flash over
// the provisioning protocol overrides them on the next boot.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// CurrentVersion is the settings format version.
// Bump this when making breaking changes to the layout.
// When firmware boots and finds a different version in flash, it is wiped.
const CurrentVersion uint16 = 1

// Size is the encoded length of Settings.
const Size = 152

const (
	hostLen       = 32
	ssidLen       = 32
	passphraseLen = 64
)

// Build-time overrides, set with
//
//	tinygo build -ldflags="-X github.com/tuffrabit/tinygo-js8-display/pkg/config.host=10.0.0.5 ..."
var (
	host       = "js8call.local"
	ssid       = ""
	passphrase = ""
)

// Flags
const (
	FlagShowClock uint32 = 1 << iota // Draw the clock line
)

// Settings holds everything the firmware reads at boot.
// Total size: 152 bytes
// Layout:
//
//	[0-1]:    Version (uint16)
//	[2-5]:    Flags (uint32)
//	[6-7]:    Port (uint16)
//	[8]:      Capacity (uint8)
//	[9]:      BrightnessMax (uint8)
//	[10]:     BrightnessMin (uint8)
//	[11]:     Reserved (uint8)
//	[12-13]:  ClockRefreshMs (uint16)
//	[14-15]:  DecayWindowMs (uint16)
//	[16-17]:  ReconnectDelayMs (uint16)
//	[18-19]:  SettleMs (uint16)
//	[20-21]:  UTCOffsetMin (int16)
//	[22-23]:  Reserved (uint16)
//	[24-55]:  Host ([32]byte)
//	[56-87]:  SSID ([32]byte)
//	[88-151]: Passphrase ([64]byte)
type Settings struct {
	Version          uint16
	Flags            uint32
	Port             uint16 // JS8Call TCP API port
	Capacity         uint8  // Messages kept in history
	BrightnessMax    uint8  // Backlight for a brand new message
	BrightnessMin    uint8  // Backlight floor
	Reserved1        uint8
	ClockRefreshMs   uint16
	DecayWindowMs    uint16 // Age at which the backlight reaches the floor
	ReconnectDelayMs uint16
	SettleMs         uint16 // Button settle window
	UTCOffsetMin     int16  // Clock offset from UTC
	Reserved2        uint16
	Host             [hostLen]byte       // Null-terminated if shorter
	SSID             [ssidLen]byte       // Null-terminated if shorter
	Passphrase       [passphraseLen]byte // Null-terminated if shorter
}

// Errors
var (
	ErrInvalidSize     = errors.New("invalid settings size")
	ErrInvalidSettings = errors.New("invalid settings")
)

// Defaults returns the compiled-in settings.
func Defaults() Settings {
	s := Settings{
		Version:          CurrentVersion,
		Flags:            FlagShowClock,
		Port:             42442,
		Capacity:         30,
		BrightnessMax:    220,
		BrightnessMin:    10,
		ClockRefreshMs:   1000,
		DecayWindowMs:    30000,
		ReconnectDelayMs: 5000,
		SettleMs:         270,
	}
	s.SetHost(host)
	s.SetSSID(ssid)
	s.SetPassphrase(passphrase)
	return s
}

// Validate checks the settings can drive the firmware.
func (s *Settings) Validate() error {
	switch {
	case s.GetHost() == "":
		return fmt.Errorf("%w: empty host", ErrInvalidSettings)
	case s.Port == 0:
		return fmt.Errorf("%w: port 0", ErrInvalidSettings)
	case s.Capacity == 0:
		return fmt.Errorf("%w: capacity 0", ErrInvalidSettings)
	case s.BrightnessMin > s.BrightnessMax:
		return fmt.Errorf("%w: brightness min %d above max %d", ErrInvalidSettings, s.BrightnessMin, s.BrightnessMax)
	case s.ClockRefreshMs == 0:
		return fmt.Errorf("%w: clock refresh 0", ErrInvalidSettings)
	case s.DecayWindowMs == 0:
		return fmt.Errorf("%w: decay window 0", ErrInvalidSettings)
	case s.ReconnectDelayMs == 0:
		return fmt.Errorf("%w: reconnect delay 0", ErrInvalidSettings)
	}
	return nil
}

// Address returns host:port for the feed connection.
func (s *Settings) Address() string {
	return fmt.Sprintf("%s:%d", s.GetHost(), s.Port)
}

func (s *Settings) ClockRefresh() time.Duration {
	return time.Duration(s.ClockRefreshMs) * time.Millisecond
}

func (s *Settings) DecayWindow() time.Duration {
	return time.Duration(s.DecayWindowMs) * time.Millisecond
}

func (s *Settings) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMs) * time.Millisecond
}

func (s *Settings) Settle() time.Duration {
	return time.Duration(s.SettleMs) * time.Millisecond
}

// Zone returns the clock's fixed zone.
func (s *Settings) Zone() *time.Location {
	if s.UTCOffsetMin == 0 {
		return time.UTC
	}
	return time.FixedZone("", int(s.UTCOffsetMin)*60)
}

// ShowClock reports whether FlagShowClock is set.
func (s *Settings) ShowClock() bool {
	return s.Flags&FlagShowClock != 0
}

// Marshal writes the Settings to w in binary format.
// Returns the number of bytes written.
func (s *Settings) Marshal(w io.Writer) (int, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}

// Unmarshal reads the Settings from r in binary format.
func (s *Settings) Unmarshal(r io.Reader) error {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return s.UnmarshalBinary(buf)
}

// MarshalBinary implements encoding.BinaryMarshaler for Settings.
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:], s.Version)
	binary.LittleEndian.PutUint32(buf[2:], s.Flags)
	binary.LittleEndian.PutUint16(buf[6:], s.Port)
	buf[8] = s.Capacity
	buf[9] = s.BrightnessMax
	buf[10] = s.BrightnessMin
	buf[11] = s.Reserved1
	binary.LittleEndian.PutUint16(buf[12:], s.ClockRefreshMs)
	binary.LittleEndian.PutUint16(buf[14:], s.DecayWindowMs)
	binary.LittleEndian.PutUint16(buf[16:], s.ReconnectDelayMs)
	binary.LittleEndian.PutUint16(buf[18:], s.SettleMs)
	binary.LittleEndian.PutUint16(buf[20:], uint16(s.UTCOffsetMin))
	binary.LittleEndian.PutUint16(buf[22:], s.Reserved2)
	copy(buf[24:56], s.Host[:])
	copy(buf[56:88], s.SSID[:])
	copy(buf[88:152], s.Passphrase[:])
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Settings.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return ErrInvalidSize
	}

	s.Version = binary.LittleEndian.Uint16(data[0:])
	s.Flags = binary.LittleEndian.Uint32(data[2:])
	s.Port = binary.LittleEndian.Uint16(data[6:])
	s.Capacity = data[8]
	s.BrightnessMax = data[9]
	s.BrightnessMin = data[10]
	s.Reserved1 = data[11]
	s.ClockRefreshMs = binary.LittleEndian.Uint16(data[12:])
	s.DecayWindowMs = binary.LittleEndian.Uint16(data[14:])
	s.ReconnectDelayMs = binary.LittleEndian.Uint16(data[16:])
	s.SettleMs = binary.LittleEndian.Uint16(data[18:])
	s.UTCOffsetMin = int16(binary.LittleEndian.Uint16(data[20:]))
	s.Reserved2 = binary.LittleEndian.Uint16(data[22:])
	copy(s.Host[:], data[24:56])
	copy(s.SSID[:], data[56:88])
	copy(s.Passphrase[:], data[88:152])
	return nil
}

func (s *Settings) GetHost() string       { return cString(s.Host[:]) }
func (s *Settings) GetSSID() string       { return cString(s.SSID[:]) }
func (s *Settings) GetPassphrase() string { return cString(s.Passphrase[:]) }

// SetHost sets the host, truncated to 31 bytes.
func (s *Settings) SetHost(v string) { setCString(s.Host[:], v) }

// SetSSID sets the network name, truncated to 31 bytes.
func (s *Settings) SetSSID(v string) { setCString(s.SSID[:], v) }

// SetPassphrase sets the network passphrase, truncated to 63 bytes.
func (s *Settings) SetPassphrase(v string) { setCString(s.Passphrase[:], v) }

// Redacted returns a copy with the passphrase cleared, for reporting.
func (s Settings) Redacted() Settings {
	s.Passphrase = [passphraseLen]byte{}
	return s
}

// cString returns dst up to the first null byte.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// setCString copies v into dst, truncating so a null terminator always fits,
// and zeroes the rest.
func setCString(dst []byte, v string) {
	n := copy(dst[:len(dst)-1], v)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
