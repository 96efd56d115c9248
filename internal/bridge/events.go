package bridge

import (
	"beacon-bridge.klederson.com/internal/beacon"
)

// Event names delivered to the caller.
const (
	EventBeaconServiceConnected = "beaconServiceConnected"
	EventBindStatus             = "bindStatus"
	EventRegionDidEnter         = "regionDidEnter"
	EventRegionDidExit          = "regionDidExit"
	EventRegionInside           = "regionInside"
	EventRegionOutside          = "regionOutside"
	EventBeaconsDidRange        = "beaconsDidRange"
)

// Emitter delivers events to the calling context. Events are only emitted
// while Active reports true; otherwise they are dropped.
type Emitter interface {
	Active() bool
	Emit(name string, payload any)
}

// Emitters fans events out to every active member.
type Emitters []Emitter

func (es Emitters) Active() bool {
	for _, e := range es {
		if e != nil && e.Active() {
			return true
		}
	}
	return false
}

func (es Emitters) Emit(name string, payload any) {
	for _, e := range es {
		if e != nil && e.Active() {
			e.Emit(name, payload)
		}
	}
}

// BindStatusPayload is the bindStatus event body.
type BindStatusPayload struct {
	Status string `json:"status"`
}

// RegionPayload describes a region. Major and minor are omitted when the
// region does not constrain them.
type RegionPayload struct {
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
	Major      *int   `json:"major,omitempty"`
	Minor      *int   `json:"minor,omitempty"`
}

// NewRegionPayload converts a region.
func NewRegionPayload(r beacon.Region) RegionPayload {
	p := RegionPayload{Identifier: r.ID}
	if id := r.UUID(); id != nil {
		p.UUID = id.String()
	}
	if id := r.Major(); id != nil {
		v := id.Int()
		p.Major = &v
	}
	if id := r.Minor(); id != nil {
		v := id.Int()
		p.Minor = &v
	}
	return p
}

// DetectedBeacon is one beacon of a beaconsDidRange event.
type DetectedBeacon struct {
	UUID       string           `json:"uuid"`
	Major      *int             `json:"major,omitempty"`
	Minor      *int             `json:"minor,omitempty"`
	RSSI       int              `json:"rssi"`
	Distance   float64          `json:"distance"`
	Proximity  beacon.Proximity `json:"proximity"`
	Name       string           `json:"name,omitempty"`
	MACAddress string           `json:"macAddress,omitempty"`
}

// NewDetectedBeacon converts a ranged beacon. Non-finite distances are
// replaced before classification so the payload always encodes.
func NewDetectedBeacon(b beacon.Beacon) DetectedBeacon {
	distance := beacon.NormalizeDistance(b.Distance)
	d := DetectedBeacon{
		UUID:       b.UUID(),
		RSSI:       b.RSSI,
		Distance:   distance,
		Proximity:  beacon.Classify(distance),
		Name:       b.Name,
		MACAddress: b.MAC,
	}
	if major, minor, ok := b.MajorMinor(); ok {
		d.Major = &major
		d.Minor = &minor
	}
	return d
}

// RangingPayload is the beaconsDidRange event body.
type RangingPayload struct {
	Identifier string           `json:"identifier"`
	UUID       string           `json:"uuid"`
	Beacons    []DetectedBeacon `json:"beacons"`
}

// NewRangingPayload converts one ranging tick. Beacons is never nil.
func NewRangingPayload(r beacon.Region, beacons []beacon.Beacon) RangingPayload {
	p := RangingPayload{
		Identifier: r.ID,
		Beacons:    make([]DetectedBeacon, 0, len(beacons)),
	}
	if id := r.UUID(); id != nil {
		p.UUID = id.String()
	}
	for _, b := range beacons {
		p.Beacons = append(p.Beacons, NewDetectedBeacon(b))
	}
	return p
}
