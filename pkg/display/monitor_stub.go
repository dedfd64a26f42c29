//go:build !tinygo || nodebug

package display

// Monitor is a no-op when built with the nodebug tag or off the board.
type Monitor struct{}

// NewMonitor returns nil; the console handles a nil monitor gracefully.
func NewMonitor() *Monitor {
	return nil
}

func (m *Monitor) ShowIncoming(bytesStr, parsedStr string) {}

func (m *Monitor) ShowOutgoing(bytesStr, parsedStr string) {}

func (m *Monitor) ShowError(msg string) {}
