// Package message defines the directed-message value shown on the display and
// the decoder that turns JS8Call API lines into messages.
package message

import "time"

// Unknown is the sentinel for numeric fields the feed did not report.
const Unknown = -1

// NotAvailable is the placeholder for text fields the feed did not report.
const NotAvailable = "N/A"

// Message is one received, addressed transmission.
// Values are never mutated after Decode returns them.
type Message struct {
	From    string    // Sender callsign
	To      string    // Recipient callsign or group
	Offset  int       // Audio frequency offset in Hz, Unknown if absent
	SNR     int       // Signal-to-noise ratio in dB, Unknown if absent
	Text    string    // Message body
	Arrived time.Time // Local arrival time, monotonic
}

// Age returns how long ago the message arrived relative to now.
// A message stamped after now has age zero.
func (m Message) Age(now time.Time) time.Duration {
	age := now.Sub(m.Arrived)
	if age < 0 {
		return 0
	}
	return age
}
