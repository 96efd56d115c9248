package engine

import (
	"fmt"
	"time"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/config"
)

type monitorState struct {
	region    beacon.Region
	evaluated bool
	inside    bool
	lastSeen  time.Time
}

// StartMonitoring adds r to the monitored set. State is first evaluated at
// the end of the next scan cycle.
func (m *Manager) StartMonitoring(r beacon.Region) error {
	if r.ID == "" {
		return ErrEmptyRegionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.monitored {
		if ms.region.SameRegion(r) {
			return fmt.Errorf("region %q is %w", r.ID, ErrAlreadyMonitored)
		}
	}
	m.monitored = append(m.monitored, &monitorState{region: r})
	m.logger.Debug("monitoring started", "region_id", r.ID, "region", r.String())
	return nil
}

// StopMonitoring removes the region with r's ID. Unknown IDs are ignored.
func (m *Manager) StopMonitoring(r beacon.Region) error {
	if r.ID == "" {
		return ErrEmptyRegionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ms := range m.monitored {
		if ms.region.SameRegion(r) {
			m.monitored = append(m.monitored[:i], m.monitored[i+1:]...)
			m.logger.Debug("monitoring stopped", "region_id", r.ID)
			return nil
		}
	}
	return nil
}

// StartRanging adds r to the ranged set.
func (m *Manager) StartRanging(r beacon.Region) error {
	if r.ID == "" {
		return ErrEmptyRegionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ranged {
		if existing.SameRegion(r) {
			return fmt.Errorf("region %q is %w", r.ID, ErrAlreadyRanged)
		}
	}
	m.ranged = append(m.ranged, r)
	m.logger.Debug("ranging started", "region_id", r.ID, "region", r.String())
	return nil
}

// StopRanging removes the region with r's ID. Unknown IDs are ignored.
func (m *Manager) StopRanging(r beacon.Region) error {
	if r.ID == "" {
		return ErrEmptyRegionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.ranged {
		if existing.SameRegion(r) {
			m.ranged = append(m.ranged[:i], m.ranged[i+1:]...)
			m.logger.Debug("ranging stopped", "region_id", r.ID)
			return nil
		}
	}
	return nil
}

// MonitoredRegions returns the monitored regions in the order they were added.
func (m *Manager) MonitoredRegions() []beacon.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]beacon.Region, len(m.monitored))
	for i, ms := range m.monitored {
		out[i] = ms.region
	}
	return out
}

// RangedRegions returns the ranged regions in the order they were added.
func (m *Manager) RangedRegions() []beacon.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]beacon.Region(nil), m.ranged...)
}

// RequestStateForRegion determines the current state of r and delivers it
// to every region notifier. A monitored region reports its last evaluated
// state, RegionUnknown before the first evaluation. Other regions are
// checked against the tracked beacons.
func (m *Manager) RequestStateForRegion(r beacon.Region) RegionEvent {
	m.mu.Lock()
	state, found := RegionOutside, false
	for _, ms := range m.monitored {
		if !ms.region.SameRegion(r) {
			continue
		}
		found = true
		switch {
		case !ms.evaluated:
			state = RegionUnknown
		case ms.inside:
			state = RegionInside
		}
		r = ms.region
		break
	}
	notifiers := append([]RegionNotifier(nil), m.regionNotifiers...)
	m.mu.Unlock()

	if !found {
		cutoff := m.now().Add(-config.RegionExitPeriod)
		for _, b := range m.store.Snapshot() {
			if r.Matches(b) && !b.LastSeen.Before(cutoff) {
				state = RegionInside
				break
			}
		}
	}

	for _, n := range notifiers {
		n.OnRegionTransition(r, state)
	}
	return state
}

// evaluate updates ms with the beacons seen this cycle and returns the
// events to deliver. The manager lock must be held.
func (ms *monitorState) evaluate(seen []beacon.Beacon, now time.Time) []RegionEvent {
	for _, b := range seen {
		if ms.region.Matches(b) {
			ms.lastSeen = now
			break
		}
	}
	inside := !ms.lastSeen.IsZero() && now.Sub(ms.lastSeen) < config.RegionExitPeriod

	var events []RegionEvent
	switch {
	case !ms.evaluated && inside:
		events = []RegionEvent{RegionEntered, RegionInside}
	case !ms.evaluated:
		events = []RegionEvent{RegionOutside}
	case inside && !ms.inside:
		events = []RegionEvent{RegionEntered, RegionInside}
	case !inside && ms.inside:
		events = []RegionEvent{RegionExited, RegionOutside}
	}
	ms.evaluated = true
	ms.inside = inside
	return events
}
