package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"beacon-bridge.klederson.com/internal/beacon"
)

type trackedBeacon struct {
	beacon beacon.Beacon
	filter beacon.RssiFilter
}

// Store is a thread-safe store for decoded beacons keyed by beacon.Key.
type Store struct {
	mu      sync.RWMutex
	beacons map[string]*trackedBeacon
	extra   map[string][]uint64 // latest extra frame data fields by MAC
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		beacons: make(map[string]*trackedBeacon),
		extra:   make(map[string][]uint64),
	}
}

// Observe folds one sighting into the store. The RSSI goes through the
// beacon's filter, created from cfg on first sight, and the distance is
// recomputed from the filtered value. The updated beacon is returned.
func (s *Store) Observe(key string, b beacon.Beacon, cfg beacon.FilterConfig) beacon.Beacon {
	s.mu.Lock()
	defer s.mu.Unlock()

	tb, ok := s.beacons[key]
	if !ok {
		tb = &trackedBeacon{filter: cfg.New()}
		s.beacons[key] = tb
	} else if b.Name == "" {
		b.Name = tb.beacon.Name
	}

	tb.filter.Add(b.RSSI, b.LastSeen)
	b.FilteredRSSI = tb.filter.Value(b.LastSeen)
	b.Distance = beacon.Distance(b.FilteredRSSI, b.TxPower)
	if fields, ok := s.extra[strings.ToUpper(b.MAC)]; ok {
		b.ExtraDataFields = fields
	}
	tb.beacon = b
	return b
}

// AttachExtra records the data fields of an extra frame and attaches them to
// every tracked beacon broadcasting from mac.
func (s *Store) AttachExtra(mac string, fields []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mac = strings.ToUpper(mac)
	s.extra[mac] = fields
	for _, tb := range s.beacons {
		if strings.EqualFold(tb.beacon.MAC, mac) {
			tb.beacon.ExtraDataFields = fields
		}
	}
}

// Get returns a copy of the beacon stored under key.
func (s *Store) Get(key string) (beacon.Beacon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.beacons[key]
	if !ok {
		return beacon.Beacon{}, false
	}
	return tb.beacon, true
}

// Evict removes beacons not seen within timeout of now.
// Returns the number of evicted beacons.
func (s *Store) Evict(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-timeout)
	count := 0
	for key, tb := range s.beacons {
		if tb.beacon.LastSeen.Before(cutoff) {
			delete(s.beacons, key)
			count++
		}
	}
	alive := make(map[string]bool, len(s.beacons))
	for _, tb := range s.beacons {
		alive[strings.ToUpper(tb.beacon.MAC)] = true
	}
	for mac := range s.extra {
		if !alive[mac] {
			delete(s.extra, mac)
		}
	}
	return count
}

// ResetFilters replaces every beacon's RSSI filter with a fresh one built
// from cfg.
func (s *Store) ResetFilters(cfg beacon.FilterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tb := range s.beacons {
		tb.filter = cfg.New()
	}
}

// Snapshot returns a sorted copy of all beacons (strongest filtered RSSI first).
func (s *Store) Snapshot() []beacon.Beacon {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]beacon.Beacon, 0, len(s.beacons))
	for _, tb := range s.beacons {
		result = append(result, tb.beacon)
	}
	sortByRSSI(result)
	return result
}

// Count returns the total number of tracked beacons.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.beacons)
}

func sortByRSSI(beacons []beacon.Beacon) {
	sort.SliceStable(beacons, func(i, j int) bool {
		if beacons[i].FilteredRSSI != beacons[j].FilteredRSSI {
			return beacons[i].FilteredRSSI > beacons[j].FilteredRSSI // strongest first (less negative)
		}
		return beacons[i].Key(true) < beacons[j].Key(true)
	})
}
