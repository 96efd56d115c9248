package engine

import (
	"context"
	"time"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
	"beacon-bridge.klederson.com/internal/config"
)

// run alternates scan and idle periods until ctx is done. Each scan period
// ends with ranging and monitoring notifications.
func (m *Manager) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		m.mu.Lock()
		scan, between := m.periodsLocked()
		m.mu.Unlock()
		if scan < config.MinScanPeriod {
			scan = config.MinScanPeriod
		}

		m.setScanning(true)
		if !sleep(ctx, scan) {
			return
		}
		if between > 0 {
			m.setScanning(false)
		}
		m.processCycle(m.now())
		if between > 0 && !sleep(ctx, between) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) setScanning(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = on
}

// handleAdvertisement decodes adv with the registered parsers. Each AD
// element is claimed by the first parser that matches it.
func (m *Manager) handleAdvertisement(adv bluetooth.Advertisement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.scanning {
		return
	}

	for _, md := range adv.Manufacturer {
		m.decodeLocked(adv, md.PDU(), false)
	}
	for _, sd := range adv.Services {
		m.decodeLocked(adv, sd.PDU(), true)
	}
}

func (m *Manager) decodeLocked(adv bluetooth.Advertisement, pdu []byte, serviceData bool) {
	for _, p := range m.parsers {
		b, ok := p.Decode(pdu, serviceData)
		if !ok {
			continue
		}
		if p.Extra() {
			m.store.AttachExtra(adv.MAC, b.DataFields)
			return
		}
		b.RSSI = int(adv.RSSI)
		b.MAC = adv.MAC
		b.Name = adv.Name
		b.LastSeen = adv.SeenAt
		if b.LastSeen.IsZero() {
			b.LastSeen = m.now()
		}
		key := b.Key(m.hardwareEquality)
		m.store.Observe(key, b, m.filter)
		m.cycleKeys[key] = struct{}{}
		return
	}
}

type transition struct {
	region beacon.Region
	event  RegionEvent
}

// processCycle closes the current scan cycle: every ranged region receives
// the matching beacons seen during the cycle, then monitored regions are
// evaluated. Notifiers are called without the lock held.
func (m *Manager) processCycle(now time.Time) {
	m.mu.Lock()
	seen := make([]beacon.Beacon, 0, len(m.cycleKeys))
	for key := range m.cycleKeys {
		if b, ok := m.store.Get(key); ok {
			seen = append(seen, b)
		}
	}
	m.cycleKeys = make(map[string]struct{})
	sortByRSSI(seen)

	ranged := append([]beacon.Region(nil), m.ranged...)
	var transitions []transition
	for _, ms := range m.monitored {
		for _, ev := range ms.evaluate(seen, now) {
			transitions = append(transitions, transition{region: ms.region, event: ev})
		}
	}
	rangeNotifiers := append([]RangeNotifier(nil), m.rangeNotifiers...)
	regionNotifiers := append([]RegionNotifier(nil), m.regionNotifiers...)
	m.mu.Unlock()

	if n := m.store.Evict(now, config.BeaconTimeout); n > 0 {
		m.logger.Debug("evicted stale beacons", "count", n)
	}

	for _, r := range ranged {
		matched := make([]beacon.Beacon, 0, len(seen))
		for _, b := range seen {
			if r.Matches(b) {
				matched = append(matched, b)
			}
		}
		for _, n := range rangeNotifiers {
			n.OnRangeTick(r, matched)
		}
	}

	for _, t := range transitions {
		m.logger.Debug("region state", "region_id", t.region.ID, "event", t.event.String())
		for _, n := range regionNotifiers {
			n.OnRegionTransition(t.region, t.event)
		}
	}
}
