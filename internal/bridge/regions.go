package bridge

import (
	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/engine"
)

// Unspecified marks an absent major or minor in region commands.
const Unspecified = -1

// newRegion builds a region. An empty uuid and Unspecified major/minor
// leave that position unconstrained.
func newRegion(id, uuid string, minor, major int) (beacon.Region, error) {
	var ids [3]*beacon.Identifier
	if uuid != "" {
		u, err := beacon.ParseIdentifier(uuid)
		if err != nil {
			return beacon.Region{}, err
		}
		ids[0] = &u
	}
	for i, v := range []int{major, minor} {
		if v == Unspecified {
			continue
		}
		n, err := beacon.IdentifierFromInt(v)
		if err != nil {
			return beacon.Region{}, err
		}
		ids[i+1] = &n
	}
	return beacon.NewRegion(id, ids[:]...), nil
}

// StartMonitoring begins monitoring the region. minor and major may be
// Unspecified.
func (b *Bridge) StartMonitoring(regionID, uuid string, minor, major int) error {
	b.logger.Debug("start monitoring", "region_id", regionID, "uuid", uuid, "minor", minor, "major", major)
	r, err := newRegion(regionID, uuid, minor, major)
	if err != nil {
		return fail("startMonitoring", err)
	}
	return fail("startMonitoring", b.engine.StartMonitoring(r))
}

// StopMonitoring stops the region started under regionID. Other arguments
// do not take part in the lookup.
func (b *Bridge) StopMonitoring(regionID, uuid string, minor, major int) error {
	r, err := newRegion(regionID, uuid, minor, major)
	if err != nil {
		return fail("stopMonitoring", err)
	}
	return fail("stopMonitoring", b.engine.StopMonitoring(r))
}

// StartRanging ranges every beacon matching uuid, or every beacon when
// uuid is empty.
func (b *Bridge) StartRanging(regionID, uuid string) error {
	b.logger.Debug("start ranging", "region_id", regionID, "uuid", uuid)
	r, err := newRegion(regionID, uuid, Unspecified, Unspecified)
	if err != nil {
		return fail("startRanging", err)
	}
	return fail("startRanging", b.engine.StartRanging(r))
}

func (b *Bridge) StopRanging(regionID, uuid string) error {
	r, err := newRegion(regionID, uuid, Unspecified, Unspecified)
	if err != nil {
		return fail("stopRanging", err)
	}
	return fail("stopRanging", b.engine.StopRanging(r))
}

// RequestStateForRegion asks the engine for the region state. The answer
// arrives as a regionInside or regionOutside event.
func (b *Bridge) RequestStateForRegion(regionID, uuid string, minor, major int) error {
	r, err := newRegion(regionID, uuid, minor, major)
	if err != nil {
		return fail("requestStateForRegion", err)
	}
	if r.ID == "" {
		return fail("requestStateForRegion", engine.ErrEmptyRegionID)
	}
	b.engine.RequestStateForRegion(r)
	return nil
}

func (b *Bridge) GetMonitoredRegions() []RegionPayload {
	return regionPayloads(b.engine.MonitoredRegions())
}

func (b *Bridge) GetRangedRegions() []RegionPayload {
	return regionPayloads(b.engine.RangedRegions())
}

func regionPayloads(regions []beacon.Region) []RegionPayload {
	out := make([]RegionPayload, 0, len(regions))
	for _, r := range regions {
		out = append(out, NewRegionPayload(r))
	}
	return out
}

// OnRegionTransition implements engine.RegionNotifier.
func (b *Bridge) OnRegionTransition(region beacon.Region, event engine.RegionEvent) {
	var name string
	switch event {
	case engine.RegionEntered:
		name = EventRegionDidEnter
	case engine.RegionExited:
		name = EventRegionDidExit
	case engine.RegionInside:
		name = EventRegionInside
	case engine.RegionOutside:
		name = EventRegionOutside
	default:
		b.logger.Debug("region state not determined", "region_id", region.ID, "event", event.String())
		return
	}
	b.emit(name, NewRegionPayload(region))
}

// OnRangeTick implements engine.RangeNotifier.
func (b *Bridge) OnRangeTick(region beacon.Region, beacons []beacon.Beacon) {
	b.emit(EventBeaconsDidRange, NewRangingPayload(region, beacons))
}
