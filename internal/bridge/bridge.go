package bridge

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
	"beacon-bridge.klederson.com/internal/engine"
)

// Engine is the beacon manager the bridge drives. *engine.Manager
// implements it.
type Engine interface {
	Bind(engine.Consumer) error
	Unbind(engine.Consumer) error
	IsBound(engine.Consumer) bool

	Parsers() []*beacon.Parser
	AddParser(*beacon.Parser) error
	RemoveParser(*beacon.Parser) (bool, error)

	SetHardwareEqualityEnforced(bool)
	SetForegroundScanPeriod(time.Duration)
	SetForegroundBetweenScanPeriod(time.Duration)
	SetBackgroundScanPeriod(time.Duration)
	SetBackgroundBetweenScanPeriod(time.Duration)
	RssiFilter() beacon.FilterConfig
	SetRssiFilter(beacon.FilterConfig)
	CheckTransmissionSupported() int

	StartMonitoring(beacon.Region) error
	StopMonitoring(beacon.Region) error
	StartRanging(beacon.Region) error
	StopRanging(beacon.Region) error
	MonitoredRegions() []beacon.Region
	RangedRegions() []beacon.Region
	RequestStateForRegion(beacon.Region) engine.RegionEvent

	AddRegionNotifier(engine.RegionNotifier)
	AddRangeNotifier(engine.RangeNotifier)
}

// Bridge translates caller commands into engine operations and engine
// notifications into named events.
type Bridge struct {
	engine  Engine
	emitter Emitter
	logger  *slog.Logger

	mu sync.Mutex // serializes bind state and parser list changes
}

// New wires a bridge to eng. The iBeacon layout is registered and the
// bridge subscribes to region and range notifications. Events go to
// emitter, which may be nil.
func New(eng Engine, emitter Emitter, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{engine: eng, emitter: emitter, logger: logger}

	if err := b.AddParser(beacon.LayoutIBeacon); err != nil {
		return nil, err
	}
	eng.AddRegionNotifier(b)
	eng.AddRangeNotifier(b)
	return b, nil
}

func (b *Bridge) emit(name string, payload any) {
	if b.emitter == nil || !b.emitter.Active() {
		return
	}
	b.emitter.Emit(name, payload)
}

// OnServiceConnect implements engine.Consumer.
func (b *Bridge) OnServiceConnect() {
	b.logger.Info("beacon service connected")
	b.emit(EventBeaconServiceConnected, nil)
}

// BindManager binds the scan service unless already bound and reports the
// bind state with a bindStatus event.
func (b *Bridge) BindManager() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.engine.IsBound(b) {
		if err := b.engine.Bind(b); err != nil {
			b.logger.Error("bind failed", "error", err)
			b.emit(EventBindStatus, BindStatusPayload{Status: "false"})
			return fail("bindManager", err)
		}
	}
	b.emit(EventBindStatus, BindStatusPayload{Status: "true"})
	return nil
}

// UnbindManager unbinds the scan service if bound.
func (b *Bridge) UnbindManager() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.engine.IsBound(b) {
		if err := b.engine.Unbind(b); err != nil {
			b.logger.Error("unbind failed", "error", err)
			return fail("unbindManager", err)
		}
	}
	b.emit(EventBindStatus, BindStatusPayload{Status: "false"})
	return nil
}

// IsBound reports whether the bridge holds the scan service bound.
func (b *Bridge) IsBound() bool {
	return b.engine.IsBound(b)
}

func (b *Bridge) SetHardwareEqualityEnforced(enabled bool) {
	b.engine.SetHardwareEqualityEnforced(enabled)
}

// AddParser registers one layout, unbinding and rebinding around the change.
func (b *Bridge) AddParser(layout string) error {
	return b.changeParsers("addParser", []string{layout}, true)
}

// RemoveParser drops one layout. Removing an unregistered layout succeeds.
func (b *Bridge) RemoveParser(layout string) error {
	return b.changeParsers("removeParser", []string{layout}, false)
}

// AddParsersListToDetection registers every layout with a single
// unbind/rebind and returns the input list on success.
func (b *Bridge) AddParsersListToDetection(layouts []string) ([]string, error) {
	if err := b.changeParsers("addParsersListToDetection", layouts, true); err != nil {
		return nil, err
	}
	return layouts, nil
}

// RemoveParsersListToDetection is the batched form of RemoveParser.
func (b *Bridge) RemoveParsersListToDetection(layouts []string) ([]string, error) {
	if err := b.changeParsers("removeParsersListToDetection", layouts, false); err != nil {
		return nil, err
	}
	return layouts, nil
}

// changeParsers parses every layout first so that a bad layout leaves the
// parser list untouched. A failure half way is rolled back and the bind
// state before the call is restored in every case.
func (b *Bridge) changeParsers(command string, layouts []string, add bool) error {
	parsers := make([]*beacon.Parser, 0, len(layouts))
	for _, layout := range layouts {
		p, err := beacon.ParseLayout(layout)
		if err != nil {
			b.logger.Warn("invalid beacon layout", "command", command, "layout", layout, "error", err)
			return fail(command, err)
		}
		parsers = append(parsers, p)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	wasBound := b.engine.IsBound(b)
	if wasBound {
		if err := b.engine.Unbind(b); err != nil {
			return fail(command, err)
		}
	}

	var changeErr error
	var applied []*beacon.Parser
	for _, p := range parsers {
		if add {
			changeErr = b.engine.AddParser(p)
			if changeErr == nil {
				applied = append(applied, p)
			}
		} else {
			var removed bool
			removed, changeErr = b.engine.RemoveParser(p)
			if removed {
				applied = append(applied, p)
			}
		}
		if changeErr != nil {
			break
		}
	}
	if changeErr != nil {
		for i := len(applied) - 1; i >= 0; i-- {
			if add {
				_, _ = b.engine.RemoveParser(applied[i])
			} else {
				_ = b.engine.AddParser(applied[i])
			}
		}
	}

	if wasBound {
		if err := b.engine.Bind(b); err != nil {
			changeErr = errors.Join(changeErr, err)
		}
	}
	if changeErr != nil {
		return fail(command, changeErr)
	}
	b.logger.Debug("parser list changed", "command", command, "count", len(parsers))
	return nil
}

func (b *Bridge) SetForegroundScanPeriod(ms int) {
	b.engine.SetForegroundScanPeriod(millis(ms))
}

func (b *Bridge) SetForegroundBetweenScanPeriod(ms int) {
	b.engine.SetForegroundBetweenScanPeriod(millis(ms))
}

func (b *Bridge) SetBackgroundScanPeriod(ms int) {
	b.engine.SetBackgroundScanPeriod(millis(ms))
}

func (b *Bridge) SetBackgroundBetweenScanPeriod(ms int) {
	b.engine.SetBackgroundBetweenScanPeriod(millis(ms))
}

func millis(ms int) time.Duration {
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// SetRssiFilter selects the RSSI filter. A positive modifier overrides the
// sample expiration (ms) of the running average or the ARMA speed. Unknown
// kinds are logged and ignored.
func (b *Bridge) SetRssiFilter(kind int, modifier float64) {
	k := beacon.FilterKind(kind)
	if k != beacon.FilterRunningAverage && k != beacon.FilterARMA {
		b.logger.Warn("unknown rssi filter kind", "kind", kind)
		return
	}
	cfg := b.engine.RssiFilter()
	cfg.Kind = k
	b.engine.SetRssiFilter(cfg.WithModifier(modifier))
}

// CheckTransmissionSupported returns one of the transmission status codes.
func (b *Bridge) CheckTransmissionSupported() int {
	return b.engine.CheckTransmissionSupported()
}

// Constants returns the integer constants exposed to callers.
func (b *Bridge) Constants() map[string]int {
	c := map[string]int{
		"RUNNING_AVG_RSSI_FILTER": int(beacon.FilterRunningAverage),
		"ARMA_RSSI_FILTER":        int(beacon.FilterARMA),
	}
	for _, s := range bluetooth.TransmissionStatuses {
		c[s.String()] = int(s)
	}
	return c
}
