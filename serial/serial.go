// Package serial runs the provisioning protocol over the USB console
// without ever blocking the display loop.
package serial

import (
	"bytes"
	"errors"
	"log/slog"
	"strconv"

	"github.com/tuffrabit/tinygo-js8-display/pkg/protocol"
)

// maxPending bounds buffered input to one maximum-size frame.
const maxPending = 4 + protocol.MaxPayload + 2

// Port is the subset of machine.Serialer the console needs.
type Port interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(p []byte) (n int, err error)
}

// Monitor mirrors console traffic somewhere visible; display.Monitor
// satisfies it.
type Monitor interface {
	ShowIncoming(bytesStr, parsedStr string)
	ShowOutgoing(bytesStr, parsedStr string)
	ShowError(msg string)
}

// Console feeds framed commands from a Port to a protocol.Handler.
type Console struct {
	port    Port
	handler *protocol.Handler
	logger  *slog.Logger
	monitor Monitor
	pending []byte
	out     bytes.Buffer
}

// NewConsole creates a console. monitor may be nil.
func NewConsole(port Port, handler *protocol.Handler, monitor Monitor, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Console{
		port:    port,
		handler: handler,
		logger:  logger,
		monitor: monitor,
		pending: make([]byte, 0, 64),
	}
}

// Poll drains whatever the port has buffered and answers every complete
// frame. It returns the number of frames handled.
func (c *Console) Poll() int {
	for n := c.port.Buffered(); n > 0; n-- {
		b, err := c.port.ReadByte()
		if err != nil {
			break
		}
		c.pending = append(c.pending, b)
	}

	handled := 0
	for len(c.pending) > 0 {
		frame, used, err := protocol.ParseFrame(c.pending)
		if used == 0 && err == nil {
			break
		}
		c.pending = c.pending[:copy(c.pending, c.pending[used:])]

		switch {
		case errors.Is(err, protocol.ErrCRCMismatch):
			c.logger.Warn("console frame rejected", "err", err)
			if c.monitor != nil {
				c.monitor.ShowError(err.Error())
			}
			c.respond(&protocol.Response{Status: protocol.StatusCRCError})
		case err != nil:
			c.logger.Debug("console noise skipped", "bytes", used)
		default:
			in := protocol.Summary(frame.Cmd, frame.Payload)
			if c.monitor != nil {
				c.monitor.ShowIncoming(in, parsed(protocol.CommandName(frame.Cmd), frame.Payload))
			}

			resp := c.handler.Handle(frame)
			c.logger.Debug("console command",
				"cmd", protocol.CommandName(frame.Cmd),
				"in", in,
				"status", protocol.StatusName(resp.Status))

			if c.monitor != nil {
				c.monitor.ShowOutgoing(protocol.Summary(resp.Status, resp.Payload), parsed(protocol.StatusName(resp.Status), resp.Payload))
			}
			c.respond(resp)
			handled++
		}
	}

	if len(c.pending) > maxPending {
		c.pending = c.pending[:0]
	}
	return handled
}

// parsed is the short form shown on the monitor, e.g. "Ping[2]".
func parsed(name string, payload []byte) string {
	return name + "[" + strconv.Itoa(len(payload)) + "]"
}

func (c *Console) respond(resp *protocol.Response) {
	c.out.Reset()
	protocol.WriteResponse(&c.out, resp)
	if _, err := c.port.Write(c.out.Bytes()); err != nil {
		c.logger.Warn("console write failed", "err", err)
	}
}
