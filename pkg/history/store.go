// Package history keeps the most recent directed messages in a fixed ring and
// tracks which one is on screen.
package history

import "github.com/tuffrabit/tinygo-js8-display/pkg/message"

// DefaultCapacity is the number of messages kept when no capacity is configured.
const DefaultCapacity = 30

// Direction selects the neighbour Navigate moves to.
type Direction int8

const (
	Prev Direction = -1
	Next Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Prev:
		return "prev"
	case Next:
		return "next"
	default:
		return "none"
	}
}

// Store is a fixed-capacity ring of messages with a navigation cursor.
// Slot total%cap always receives the next insert; once the ring is full the
// oldest message is overwritten. The cursor is a logical position in the
// retained set (0 = oldest retained) and is meaningless while total is zero.
type Store struct {
	slots  []message.Message
	total  uint64
	cursor int
}

// New creates a store holding up to capacity messages.
// A capacity below 1 is raised to 1, which keeps only the latest message.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		slots: make([]message.Message, capacity),
	}
}

// Insert stores m as the newest message and moves the cursor onto it.
func (s *Store) Insert(m message.Message) {
	s.slots[s.total%uint64(len(s.slots))] = m
	s.total++
	s.cursor = s.Len() - 1
}

// Current returns the message under the cursor, or false if nothing has been
// inserted yet.
func (s *Store) Current() (message.Message, bool) {
	if s.total == 0 {
		return message.Message{}, false
	}
	return s.slots[s.physical(s.cursor)], true
}

// Navigate moves the cursor one step, wrapping between the oldest and newest
// retained messages. It does nothing on an empty store.
func (s *Store) Navigate(d Direction) {
	n := s.Len()
	if n == 0 {
		return
	}
	switch d {
	case Next:
		s.cursor = (s.cursor + 1) % n
	case Prev:
		s.cursor = (s.cursor - 1 + n) % n
	}
}

// Len returns the number of retained messages, min(total, capacity).
func (s *Store) Len() int {
	if s.total < uint64(len(s.slots)) {
		return int(s.total)
	}
	return len(s.slots)
}

// Cap returns the capacity.
func (s *Store) Cap() int {
	return len(s.slots)
}

// Total returns how many messages were ever inserted.
func (s *Store) Total() uint64 {
	return s.total
}

// Position returns the 1-based logical position of the cursor, 1 being the
// oldest retained message, or 0 when the store is empty.
func (s *Store) Position() int {
	if s.total == 0 {
		return 0
	}
	return s.cursor + 1
}

// Snapshot returns the retained messages oldest first.
func (s *Store) Snapshot() []message.Message {
	n := s.Len()
	if n == 0 {
		return nil
	}
	result := make([]message.Message, n)
	for i := range result {
		result[i] = s.slots[s.physical(i)]
	}
	return result
}

// physical maps a logical position to its slot.
func (s *Store) physical(logical int) int {
	oldest := uint64(0)
	if s.total > uint64(len(s.slots)) {
		oldest = s.total - uint64(len(s.slots))
	}
	return int((oldest + uint64(logical)) % uint64(len(s.slots)))
}
