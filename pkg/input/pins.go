//go:build tinygo

package input

import "machine"

// Pins polls two active-low push buttons wired to ground with the internal
// pull-ups enabled.
type Pins struct {
	next machine.Pin
	prev machine.Pin
}

// NewPins configures next and prev as pulled-up inputs.
func NewPins(next, prev machine.Pin) *Pins {
	next.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	prev.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &Pins{next: next, prev: prev}
}

func (p *Pins) Pressed() Button {
	var b Button
	if !p.next.Get() {
		b |= ButtonNext
	}
	if !p.prev.Get() {
		b |= ButtonPrev
	}
	return b
}
