package beacon

import (
	"math"
	"strings"
	"time"

	"beacon-bridge.klederson.com/internal/config"
)

// Beacon is one decoded beacon as seen during a scan cycle.
type Beacon struct {
	Identifiers     []Identifier
	DataFields      []uint64
	ExtraDataFields []uint64

	TxPower      int     // calibrated RSSI at 1m, 0 when unknown
	RSSI         int     // last raw sample (dBm)
	FilteredRSSI float64 // output of the active RSSI filter
	Distance     float64 // meters, -1 when unknown

	MAC            string
	Name           string
	ManufacturerID uint16 // 0 for service data beacons
	ServiceUUID    uint16 // 0 for manufacturer data beacons
	Layout         string
	LastSeen       time.Time
}

// Identifier returns the i-th identifier and whether it exists.
func (b Beacon) Identifier(i int) (Identifier, bool) {
	if i < 0 || i >= len(b.Identifiers) {
		return Identifier{}, false
	}
	return b.Identifiers[i], true
}

// UUID returns the first identifier rendered as a string.
func (b Beacon) UUID() string {
	id, _ := b.Identifier(0)
	return id.String()
}

// MajorMinor returns the second and third identifiers as integers. They are
// only reported for beacons carrying more than two identifiers.
func (b Beacon) MajorMinor() (major, minor int, ok bool) {
	if len(b.Identifiers) <= 2 {
		return 0, 0, false
	}
	return b.Identifiers[1].Int(), b.Identifiers[2].Int(), true
}

// Key identifies a physical beacon for de-duplication and RSSI tracking.
// With hardware equality enforced the MAC address is part of the key.
func (b Beacon) Key(hardwareEquality bool) string {
	var sb strings.Builder
	for i, id := range b.Identifiers {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(id.String())
	}
	if hardwareEquality || len(b.Identifiers) == 0 {
		sb.WriteByte('@')
		sb.WriteString(strings.ToUpper(b.MAC))
	}
	return sb.String()
}

// Proximity is the coarse distance class reported with ranged beacons.
type Proximity string

const (
	ProximityUnknown   Proximity = "unknown"
	ProximityImmediate Proximity = "immediate"
	ProximityNear      Proximity = "near"
	ProximityFar       Proximity = "far"
)

// Classify maps a distance in meters to a proximity class. -1 is unknown.
func Classify(distance float64) Proximity {
	switch {
	case distance == config.UnknownDistance:
		return ProximityUnknown
	case distance < config.ImmediateRange:
		return ProximityImmediate
	case distance < config.NearRange:
		return ProximityNear
	default:
		return ProximityFar
	}
}

// NormalizeDistance replaces NaN and infinities with a large finite sentinel.
func NormalizeDistance(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return config.NonFiniteDistance
	}
	return d
}

// Distance estimates meters from RSSI using the log-distance path loss model.
// Formula: d = 10^((txPower - rssi) / (10 * n))
// A zero rssi means no sample and yields -1.
func Distance(rssi float64, txPower int) float64 {
	if rssi == 0 {
		return config.UnknownDistance
	}
	measured := float64(txPower)
	if txPower == 0 {
		measured = config.MeasuredPower
	}
	if rssi > 0 {
		return 0.1
	}
	d := math.Pow(10, (measured-rssi)/(10*config.PathLossExp))
	if d < 0.1 {
		return 0.1
	}
	return d
}
