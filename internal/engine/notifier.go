package engine

import (
	"context"
	"errors"
	"fmt"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
)

var (
	ErrAlreadyMonitored  = errors.New("already monitored")
	ErrAlreadyRanged     = errors.New("already ranged")
	ErrBoundParserChange = errors.New("parser set cannot change while the scan service is bound")
	ErrEmptyRegionID     = errors.New("region identifier must not be empty")
)

// Source delivers advertisements while started. Both BLEScanner and
// MockScanner satisfy it.
type Source interface {
	Start(ctx context.Context, handle bluetooth.Handler) error
	Stop()
}

// Transmitter answers whether this host can advertise as a beacon.
type Transmitter interface {
	TransmissionStatus() bluetooth.TransmissionStatus
}

// Consumer is a party holding the scan service bound.
type Consumer interface {
	OnServiceConnect()
}

// RegionEvent is a monitoring transition or a determined region state.
type RegionEvent int

const (
	RegionUnknown RegionEvent = iota
	RegionEntered
	RegionExited
	RegionInside
	RegionOutside
)

func (e RegionEvent) String() string {
	switch e {
	case RegionUnknown:
		return "unknown"
	case RegionEntered:
		return "entered"
	case RegionExited:
		return "exited"
	case RegionInside:
		return "inside"
	case RegionOutside:
		return "outside"
	default:
		return fmt.Sprintf("RegionEvent(%d)", int(e))
	}
}

// RegionNotifier receives monitoring results.
type RegionNotifier interface {
	OnRegionTransition(region beacon.Region, event RegionEvent)
}

// RangeNotifier receives the beacons of a ranged region once per cycle.
type RangeNotifier interface {
	OnRangeTick(region beacon.Region, beacons []beacon.Beacon)
}
