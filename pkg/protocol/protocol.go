// Package protocol implements the binary serial protocol used to provision
// the display from a PC and to query its live state.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Response format is identical, with a status byte in place of CMD.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tuffrabit/tinygo-js8-display/pkg/config"
	"github.com/tuffrabit/tinygo-js8-display/pkg/storage"
)

const (
	SyncByte = 0xAA

	// Command codes (PC → Device)
	CmdGetSettings  = 0x01
	CmdSetSettings  = 0x02
	CmdGetStatus    = 0x07
	CmdPing         = 0x08
	CmdFactoryReset = 0x09
	CmdGetVersion   = 0x10
	CmdDiscover     = 0x11

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusNoSpace         = 0x05
	StatusVersionMismatch = 0x06
	StatusCRCError        = 0x07

	// MaxPayload bounds the LEN field; anything larger is treated as noise.
	MaxPayload = 1024

	headerLen = 4 // sync + cmd + len
	crcLen    = 2

	statusLen = 14
)

// DiscoverReply is the Discover payload that identifies this device.
const DiscoverReply = "js8display"

// Firmware version reported by GetVersion.
var (
	FirmwareMajor uint8 = 0
	FirmwareMinor uint8 = 1
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// Status is the live state reported by GetStatus.
// Wire layout: [state:1][retained:1][total:4][dropped:4][reconnects:4]
type Status struct {
	State      uint8  // feed.State
	Retained   uint8  // messages currently in history
	Total      uint32 // messages ever stored
	Dropped    uint32 // lines rejected by the decoder, excluding other message types
	Reconnects uint32
}

// MarshalBinary implements encoding.BinaryMarshaler for Status.
func (s Status) MarshalBinary() ([]byte, error) {
	buf := make([]byte, statusLen)
	buf[0] = s.State
	buf[1] = s.Retained
	binary.LittleEndian.PutUint32(buf[2:], s.Total)
	binary.LittleEndian.PutUint32(buf[6:], s.Dropped)
	binary.LittleEndian.PutUint32(buf[10:], s.Reconnects)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Status.
func (s *Status) UnmarshalBinary(data []byte) error {
	if len(data) < statusLen {
		return ErrInvalidFrame
	}
	s.State = data[0]
	s.Retained = data[1]
	s.Total = binary.LittleEndian.Uint32(data[2:])
	s.Dropped = binary.LittleEndian.Uint32(data[6:])
	s.Reconnects = binary.LittleEndian.Uint32(data[10:])
	return nil
}

// StatusSource supplies the live state for GetStatus.
type StatusSource interface {
	Status() Status
}

// Handler processes protocol commands.
type Handler struct {
	storage  *storage.Manager
	defaults config.Settings
	status   StatusSource
}

// NewHandler creates a new protocol handler. defaults are reported by
// GetSettings until something has been saved. status may be nil, in which
// case GetStatus reports zeros.
func NewHandler(sm *storage.Manager, defaults config.Settings, status StatusSource) *Handler {
	return &Handler{
		storage:  sm,
		defaults: defaults,
		status:   status,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	// Read sync byte
	sync := make([]byte, 1)
	if _, err := io.ReadFull(r, sync); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// Read header (cmd + len)
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	length := binary.LittleEndian.Uint16(header[1:])

	if length > MaxPayload {
		return nil, ErrInvalidFrame
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	crcBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, crcBytes); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes)

	calculatedCRC := calcCRC(append(header, payload...))
	if receivedCRC != calculatedCRC {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     cmd,
		Payload: payload,
	}, nil
}

// ParseFrame extracts one frame from the start of buf without blocking.
// It returns the number of bytes consumed. A nil frame with zero consumed and
// a nil error means buf holds an incomplete frame. Bytes ahead of a sync byte
// are consumed with ErrInvalidFrame; a complete frame with a bad checksum is
// consumed with ErrCRCMismatch.
func ParseFrame(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] != SyncByte {
		skip := 1
		for skip < len(buf) && buf[skip] != SyncByte {
			skip++
		}
		return nil, skip, ErrInvalidFrame
	}
	if len(buf) < headerLen {
		return nil, 0, nil
	}

	length := int(binary.LittleEndian.Uint16(buf[2:]))
	if length > MaxPayload {
		// Drop the sync byte so the caller resynchronises on the next one.
		return nil, 1, ErrInvalidFrame
	}

	total := headerLen + length + crcLen
	if len(buf) < total {
		return nil, 0, nil
	}

	receivedCRC := binary.LittleEndian.Uint16(buf[headerLen+length:])
	if calcCRC(buf[1:headerLen+length]) != receivedCRC {
		return nil, total, ErrCRCMismatch
	}

	frame := &Frame{Cmd: buf[1]}
	if length > 0 {
		frame.Payload = append([]byte(nil), buf[headerLen:headerLen+length]...)
	}
	return frame, total, nil
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	_, err := w.Write(encode(resp.Status, resp.Payload))
	return err
}

// WriteFrame writes a request frame (PC side and tests).
func WriteFrame(w io.Writer, frame *Frame) error {
	_, err := w.Write(encode(frame.Cmd, frame.Payload))
	return err
}

// ReadResponse reads a response frame (PC side and tests).
func ReadResponse(r io.Reader) (*Response, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return &Response{Status: f.Cmd, Payload: f.Payload}, nil
}

// encode builds [sync][code][len][payload][crc].
func encode(code uint8, payload []byte) []byte {
	payloadLen := uint16(len(payload))
	buf := make([]byte, 0, headerLen+int(payloadLen)+crcLen)

	buf = append(buf, SyncByte, code)
	buf = binary.LittleEndian.AppendUint16(buf, payloadLen)
	buf = append(buf, payload...)

	// CRC of code + len + payload
	return binary.LittleEndian.AppendUint16(buf, calcCRC(buf[1:]))
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetSettings:
		return h.handleGetSettings()
	case CmdSetSettings:
		return h.handleSetSettings(frame.Payload)
	case CmdGetStatus:
		return h.handleGetStatus()
	case CmdFactoryReset:
		return h.handleFactoryReset()
	case CmdGetVersion:
		return h.handleGetVersion()
	case CmdDiscover:
		return &Response{Status: StatusOK, Payload: []byte(DiscoverReply)}
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// current returns the stored settings, or the defaults if none are stored.
func (h *Handler) current() (config.Settings, error) {
	var s config.Settings
	err := h.storage.LoadSettings(&s)
	if err == storage.ErrNotFound {
		return h.defaults, nil
	}
	return s, err
}

// handleGetSettings returns the settings the next boot will use, with the
// passphrase blanked.
func (h *Handler) handleGetSettings() *Response {
	s, err := h.current()
	if err != nil {
		return &Response{Status: StatusError}
	}

	r := s.Redacted()
	data, err := r.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetSettings validates and stores settings for the next boot.
// An empty passphrase keeps the current one when the SSID is unchanged, so
// a GetSettings/SetSettings round trip does not lose it.
// Payload: [Settings:152 bytes]
func (h *Handler) handleSetSettings(payload []byte) *Response {
	if len(payload) != config.Size {
		return &Response{Status: StatusInvalidData}
	}

	var s config.Settings
	if err := s.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if s.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}

	if s.GetPassphrase() == "" {
		if cur, err := h.current(); err == nil && cur.GetSSID() == s.GetSSID() {
			s.Passphrase = cur.Passphrase
		}
	}

	if err := s.Validate(); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if err := h.storage.SaveSettings(&s); err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{Status: StatusOK}
}

// handleGetStatus returns the live feed and history state.
// Response: [state:1][retained:1][total:4][dropped:4][reconnects:4]
func (h *Handler) handleGetStatus() *Response {
	var st Status
	if h.status != nil {
		st = h.status.Status()
	}

	data, err := st.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleFactoryReset removes stored settings; the next boot uses defaults.
func (h *Handler) handleFactoryReset() *Response {
	if err := h.storage.Wipe(); err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and settings version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][SettingsVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
