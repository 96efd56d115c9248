package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
	"beacon-bridge.klederson.com/internal/config"
)

// Manager owns the scan service: the advertisement source, the parser list,
// scan timing, the RSSI filter and the monitored and ranged regions. One
// Manager exists per process and is shared by reference.
type Manager struct {
	source      Source
	transmitter Transmitter
	logger      *slog.Logger
	store       *Store
	now         func() time.Time

	bindMu    sync.Mutex // serializes Bind and Unbind
	consumers []Consumer
	cancel    context.CancelFunc
	done      chan struct{}

	mu               sync.Mutex
	parsers          []*beacon.Parser
	hardwareEquality bool
	fgScan           time.Duration
	fgBetween        time.Duration
	bgScan           time.Duration
	bgBetween        time.Duration
	background       bool
	filter           beacon.FilterConfig
	monitored        []*monitorState
	ranged           []beacon.Region
	regionNotifiers  []RegionNotifier
	rangeNotifiers   []RangeNotifier
	scanning         bool
	cycleKeys        map[string]struct{}
}

// New creates a Manager reading from source. The parser list starts with
// the AltBeacon layout.
func New(source Source, transmitter Transmitter, logger *slog.Logger) *Manager {
	alt, err := beacon.ParseLayout(beacon.LayoutAltBeacon)
	if err != nil {
		panic(err)
	}
	return &Manager{
		source:      source,
		transmitter: transmitter,
		logger:      logger,
		store:       NewStore(),
		now:         time.Now,
		parsers:     []*beacon.Parser{alt},
		fgScan:      config.ForegroundScanPeriod,
		fgBetween:   config.ForegroundBetweenScanPeriod,
		bgScan:      config.BackgroundScanPeriod,
		bgBetween:   config.BackgroundBetweenScanPeriod,
		filter:      beacon.DefaultFilterConfig(),
		cycleKeys:   make(map[string]struct{}),
	}
}

// Bind registers c. The first consumer starts the source and the scan
// cycle. OnServiceConnect is called asynchronously once the service runs.
// Binding an already bound consumer does nothing.
func (m *Manager) Bind(c Consumer) error {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()

	for _, existing := range m.consumers {
		if existing == c {
			return nil
		}
	}

	if len(m.consumers) == 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.setScanning(true)
		if err := m.source.Start(ctx, m.handleAdvertisement); err != nil {
			cancel()
			m.setScanning(false)
			return err
		}
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.run(ctx, m.done)
		m.logger.Info("scan service started")
	}

	m.consumers = append(m.consumers, c)
	go c.OnServiceConnect()
	return nil
}

// Unbind removes c. Unbinding the last consumer stops the source and waits
// for the scan cycle to exit. Unbinding an unknown consumer does nothing.
func (m *Manager) Unbind(c Consumer) error {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()

	idx := -1
	for i, existing := range m.consumers {
		if existing == c {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	m.consumers = append(m.consumers[:idx], m.consumers[idx+1:]...)

	if len(m.consumers) == 0 {
		m.cancel()
		m.source.Stop()
		<-m.done
		m.cancel, m.done = nil, nil
		m.setScanning(false)
		m.logger.Info("scan service stopped")
	}
	return nil
}

// IsBound reports whether c currently holds the service bound.
func (m *Manager) IsBound(c Consumer) bool {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()
	for _, existing := range m.consumers {
		if existing == c {
			return true
		}
	}
	return false
}

func (m *Manager) running() bool {
	m.bindMu.Lock()
	defer m.bindMu.Unlock()
	return len(m.consumers) > 0
}

// Parsers returns the registered parsers in registration order.
func (m *Manager) Parsers() []*beacon.Parser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*beacon.Parser(nil), m.parsers...)
}

// AddParser appends p to the parser list. Duplicates are kept so that a
// later RemoveParser restores the previous list.
func (m *Manager) AddParser(p *beacon.Parser) error {
	if m.running() {
		return ErrBoundParserChange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsers = append(m.parsers, p)
	m.logger.Debug("parser added", "layout", p.Layout())
	return nil
}

// RemoveParser drops the most recently added parser with the same layout
// as p and reports whether one was found.
func (m *Manager) RemoveParser(p *beacon.Parser) (bool, error) {
	if m.running() {
		return false, ErrBoundParserChange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.parsers) - 1; i >= 0; i-- {
		if m.parsers[i].Equal(p) {
			m.parsers = append(m.parsers[:i], m.parsers[i+1:]...)
			m.logger.Debug("parser removed", "layout", p.Layout())
			return true, nil
		}
	}
	return false, nil
}

// SetHardwareEqualityEnforced makes the MAC address part of beacon identity.
func (m *Manager) SetHardwareEqualityEnforced(enforced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hardwareEquality = enforced
}

// HardwareEqualityEnforced reports the current identity rule.
func (m *Manager) HardwareEqualityEnforced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hardwareEquality
}

func (m *Manager) SetForegroundScanPeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fgScan = d
}

func (m *Manager) SetForegroundBetweenScanPeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fgBetween = d
}

func (m *Manager) SetBackgroundScanPeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bgScan = d
}

func (m *Manager) SetBackgroundBetweenScanPeriod(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bgBetween = d
}

// SetBackgroundMode switches between the foreground and background scan
// periods. It takes effect at the next cycle.
func (m *Manager) SetBackgroundMode(background bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.background = background
}

// ScanPeriods returns the scan and between-scan durations in effect.
func (m *Manager) ScanPeriods() (scan, between time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodsLocked()
}

func (m *Manager) periodsLocked() (time.Duration, time.Duration) {
	if m.background {
		return m.bgScan, m.bgBetween
	}
	return m.fgScan, m.fgBetween
}

// SetRssiFilter selects the RSSI filter for every beacon. Existing filter
// state is discarded.
func (m *Manager) SetRssiFilter(cfg beacon.FilterConfig) {
	m.mu.Lock()
	m.filter = cfg
	m.mu.Unlock()
	m.store.ResetFilters(cfg)
	m.logger.Debug("rssi filter changed", "kind", cfg.Kind.String())
}

// RssiFilter returns the active filter configuration.
func (m *Manager) RssiFilter() beacon.FilterConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// CheckTransmissionSupported returns the transmission status code.
func (m *Manager) CheckTransmissionSupported() int {
	if m.transmitter == nil {
		return int(bluetooth.NotSupportedBLE)
	}
	return int(m.transmitter.TransmissionStatus())
}

// Beacons returns every tracked beacon, strongest first.
func (m *Manager) Beacons() []beacon.Beacon {
	return m.store.Snapshot()
}

func (m *Manager) AddRegionNotifier(n RegionNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regionNotifiers = append(m.regionNotifiers, n)
}

func (m *Manager) RemoveRegionNotifier(n RegionNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.regionNotifiers {
		if existing == n {
			m.regionNotifiers = append(m.regionNotifiers[:i], m.regionNotifiers[i+1:]...)
			return
		}
	}
}

func (m *Manager) AddRangeNotifier(n RangeNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rangeNotifiers = append(m.rangeNotifiers, n)
}

func (m *Manager) RemoveRangeNotifier(n RangeNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rangeNotifiers {
		if existing == n {
			m.rangeNotifiers = append(m.rangeNotifiers[:i], m.rangeNotifiers[i+1:]...)
			return
		}
	}
}
