package app

import (
	"fmt"
	"time"

	"beacon-bridge.klederson.com/internal/bridge"
)

// RSSIRing is a circular buffer for RSSI history values.
type RSSIRing struct {
	buf   []float64
	pos   int
	count int
}

// NewRSSIRing creates a new circular buffer with the given capacity.
func NewRSSIRing(capacity int) *RSSIRing {
	return &RSSIRing{buf: make([]float64, capacity)}
}

// Push adds a value, overwriting the oldest one when full.
func (r *RSSIRing) Push(val float64) {
	r.buf[r.pos] = val
	r.pos = (r.pos + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Values returns all stored values in chronological order.
func (r *RSSIRing) Values() []float64 {
	if r.count == 0 {
		return nil
	}
	result := make([]float64, r.count)
	if r.count < len(r.buf) {
		copy(result, r.buf[:r.count])
	} else {
		n := copy(result, r.buf[r.pos:])
		copy(result[n:], r.buf[:r.pos])
	}
	return result
}

// Len returns the number of stored values.
func (r *RSSIRing) Len() int {
	return r.count
}

type historyEntry struct {
	ring     *RSSIRing
	lastSeen time.Time
}

// History keeps one RSSI ring per ranged beacon.
type History struct {
	capacity int
	entries  map[string]*historyEntry
}

func NewHistory(capacity int) *History {
	return &History{capacity: capacity, entries: make(map[string]*historyEntry)}
}

// Record pushes the RSSI of every beacon of one ranging tick.
func (h *History) Record(beacons []bridge.DetectedBeacon, now time.Time) {
	for _, b := range beacons {
		key := BeaconKey(b)
		e, ok := h.entries[key]
		if !ok {
			e = &historyEntry{ring: NewRSSIRing(h.capacity)}
			h.entries[key] = e
		}
		e.ring.Push(float64(b.RSSI))
		e.lastSeen = now
	}
}

// Values returns the history of the beacon with key.
func (h *History) Values(key string) []float64 {
	if e, ok := h.entries[key]; ok {
		return e.ring.Values()
	}
	return nil
}

// LastSeen returns when the beacon with key was last ranged.
func (h *History) LastSeen(key string) time.Time {
	if e, ok := h.entries[key]; ok {
		return e.lastSeen
	}
	return time.Time{}
}

// Prune forgets beacons not ranged within timeout.
func (h *History) Prune(now time.Time, timeout time.Duration) {
	for key, e := range h.entries {
		if now.Sub(e.lastSeen) > timeout {
			delete(h.entries, key)
		}
	}
}

// BeaconKey identifies a ranged beacon across ticks.
func BeaconKey(b bridge.DetectedBeacon) string {
	key := b.UUID
	if b.Major != nil && b.Minor != nil {
		key += fmt.Sprintf("/%d/%d", *b.Major, *b.Minor)
	}
	if b.MACAddress != "" {
		key += "@" + b.MACAddress
	}
	return key
}
