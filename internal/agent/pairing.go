package agent

import (
	"sync"
	"time"

	dbus "github.com/godbus/dbus/v5"
)

// pairingSlot remembers the one device that is mid-pairing, for log
// correlation only. It assumes bluetoothd never runs two pairings through
// this agent at once; supporting that would need a map keyed by device.
type pairingSlot struct {
	mu     sync.Mutex
	device dbus.ObjectPath
	since  time.Time
}

// begin records device as pending and returns whatever it replaced.
func (s *pairingSlot) begin(device dbus.ObjectPath, now time.Time) (replaced dbus.ObjectPath) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced = s.device
	s.device = device
	s.since = now
	return replaced
}

// clear empties the slot. ok is false when nothing was pending.
func (s *pairingSlot) clear() (device dbus.ObjectPath, since time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == "" {
		return "", time.Time{}, false
	}
	device, since = s.device, s.since
	s.device, s.since = "", time.Time{}
	return device, since, true
}

func (s *pairingSlot) current() (dbus.ObjectPath, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device, s.device != ""
}
