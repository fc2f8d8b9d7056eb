package relay

import "sync"

// Mailbox is the single-slot holder for the one command awaiting pickup by
// the executor. The relay operates on a single-in-flight-command model: a
// Put while the slot is occupied displaces the uncollected command.
type Mailbox struct {
	mu   sync.Mutex
	slot *Command
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put places a command in the slot and returns the command it displaced,
// if any. Callers are expected to log displacements; they indicate a second
// caller raced the single slot.
func (m *Mailbox) Put(cmd *Command) *Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	displaced := m.slot
	m.slot = cmd
	return displaced
}

// Take retrieves and atomically clears the slot. The second return value is
// false when nothing is pending.
func (m *Mailbox) Take() (*Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		return nil, false
	}
	cmd := m.slot
	m.slot = nil
	return cmd, true
}

// Occupied reports whether a command is waiting for pickup.
func (m *Mailbox) Occupied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slot != nil
}
