package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
)

var testUUID = uuid.MustParse("2f234454-cf6d-4a0f-adf2-f4911ba9ffa6")

type fakeSource struct {
	mu      sync.Mutex
	handle  bluetooth.Handler
	started int
	stopped int
	err     error
}

func (f *fakeSource) Start(_ context.Context, h bluetooth.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.handle = h
	f.started++
	return nil
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

type fakeConsumer struct {
	connected chan struct{}
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{connected: make(chan struct{}, 4)}
}

func (c *fakeConsumer) OnServiceConnect() { c.connected <- struct{}{} }

type rangeTick struct {
	region  beacon.Region
	beacons []beacon.Beacon
}

type recorder struct {
	mu          sync.Mutex
	ticks       []rangeTick
	transitions []transition
}

func (r *recorder) OnRangeTick(region beacon.Region, beacons []beacon.Beacon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, rangeTick{region: region, beacons: beacons})
}

func (r *recorder) OnRegionTransition(region beacon.Region, event RegionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition{region: region, event: event})
}

func (r *recorder) events() []RegionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegionEvent, len(r.transitions))
	for i, t := range r.transitions {
		out[i] = t.event
	}
	r.transitions = nil
	return out
}

func (r *recorder) takeTicks() []rangeTick {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ticks
	r.ticks = nil
	return out
}

func newTestManager(t *testing.T) (*Manager, *fakeSource, *recorder) {
	t.Helper()
	src := &fakeSource{}
	m := New(src, bluetooth.MockTransmitter{Status: bluetooth.TransmissionSupported}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	m.AddRangeNotifier(rec)
	m.AddRegionNotifier(rec)
	return m, src, rec
}

func mustParser(t *testing.T, layout string) *beacon.Parser {
	t.Helper()
	p, err := beacon.ParseLayout(layout)
	require.NoError(t, err)
	return p
}

func iBeaconAdv(mac string, major, minor uint16, rssi int16, at time.Time) bluetooth.Advertisement {
	return bluetooth.Advertisement{
		MAC:          mac,
		RSSI:         rssi,
		Manufacturer: []bluetooth.ManufacturerData{bluetooth.IBeaconFrame(testUUID, major, minor, -59)},
		SeenAt:       at,
	}
}

func uuidRegion(id string) beacon.Region {
	u := beacon.MustParseIdentifier(testUUID.String())
	return beacon.NewRegion(id, &u)
}

func TestBindUnbind(t *testing.T) {
	m, src, _ := newTestManager(t)
	c := newFakeConsumer()

	require.NoError(t, m.Bind(c))
	select {
	case <-c.connected:
	case <-time.After(time.Second):
		t.Fatal("OnServiceConnect not called")
	}
	assert.True(t, m.IsBound(c))

	require.NoError(t, m.Bind(c))
	started, _ := src.counts()
	assert.Equal(t, 1, started)

	require.NoError(t, m.Unbind(c))
	assert.False(t, m.IsBound(c))
	_, stopped := src.counts()
	assert.Equal(t, 1, stopped)

	require.NoError(t, m.Unbind(c))
	_, stopped = src.counts()
	assert.Equal(t, 1, stopped)
}

func TestBindSharedByConsumers(t *testing.T) {
	m, src, _ := newTestManager(t)
	a, b := newFakeConsumer(), newFakeConsumer()

	require.NoError(t, m.Bind(a))
	require.NoError(t, m.Bind(b))
	started, _ := src.counts()
	assert.Equal(t, 1, started)

	require.NoError(t, m.Unbind(a))
	_, stopped := src.counts()
	assert.Equal(t, 0, stopped)
	assert.True(t, m.IsBound(b))

	require.NoError(t, m.Unbind(b))
	_, stopped = src.counts()
	assert.Equal(t, 1, stopped)
}

func TestBindSourceError(t *testing.T) {
	m, src, _ := newTestManager(t)
	src.err = errors.New("adapter unavailable")
	c := newFakeConsumer()

	err := m.Bind(c)
	require.Error(t, err)
	assert.Equal(t, "adapter unavailable", err.Error())
	assert.False(t, m.IsBound(c))
}

func TestParserList(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.Len(t, m.Parsers(), 1)
	assert.Equal(t, beacon.LayoutAltBeacon, m.Parsers()[0].Layout())

	ib := mustParser(t, beacon.LayoutIBeacon)
	require.NoError(t, m.AddParser(ib))
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	assert.Len(t, m.Parsers(), 3)

	removed, err := m.RemoveParser(ib)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Len(t, m.Parsers(), 2)

	removed, err = m.RemoveParser(ib)
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, m.Parsers(), 1)
	assert.Equal(t, beacon.LayoutAltBeacon, m.Parsers()[0].Layout())

	removed, err = m.RemoveParser(ib)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestParserListLockedWhileBound(t *testing.T) {
	m, _, _ := newTestManager(t)
	c := newFakeConsumer()
	require.NoError(t, m.Bind(c))
	defer m.Unbind(c)

	err := m.AddParser(mustParser(t, beacon.LayoutIBeacon))
	assert.ErrorIs(t, err, ErrBoundParserChange)
	_, err = m.RemoveParser(mustParser(t, beacon.LayoutAltBeacon))
	assert.ErrorIs(t, err, ErrBoundParserChange)
	assert.Len(t, m.Parsers(), 1)
}

func TestRegionSets(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.StartMonitoring(uuidRegion("r1")))
	require.NoError(t, m.StartMonitoring(beacon.NewRegion("r2")))
	err := m.StartMonitoring(beacon.NewRegion("r1"))
	require.ErrorIs(t, err, ErrAlreadyMonitored)
	assert.Equal(t, `region "r1" is already monitored`, err.Error())

	regions := m.MonitoredRegions()
	require.Len(t, regions, 2)
	assert.Equal(t, "r1", regions[0].ID)
	assert.Equal(t, "r2", regions[1].ID)

	require.NoError(t, m.StopMonitoring(beacon.NewRegion("unknown")))
	require.NoError(t, m.StopMonitoring(beacon.NewRegion("r1")))
	assert.Len(t, m.MonitoredRegions(), 1)

	require.NoError(t, m.StartRanging(uuidRegion("r1")))
	err = m.StartRanging(uuidRegion("r1"))
	require.ErrorIs(t, err, ErrAlreadyRanged)
	assert.Equal(t, `region "r1" is already ranged`, err.Error())
	require.NoError(t, m.StopRanging(beacon.NewRegion("r1")))
	assert.Empty(t, m.RangedRegions())

	assert.ErrorIs(t, m.StartMonitoring(beacon.NewRegion("")), ErrEmptyRegionID)
	assert.ErrorIs(t, m.StartRanging(beacon.NewRegion("")), ErrEmptyRegionID)
}

func TestRangingEveryCycle(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))

	other := beacon.MustParseIdentifier("e2c56db5-dffb-48d2-b060-d0f5a71096e0")
	require.NoError(t, m.StartRanging(beacon.NewRegion("all")))
	require.NoError(t, m.StartRanging(beacon.NewRegion("other", &other)))

	t0 := time.Unix(1700000000, 0)
	m.setScanning(true)
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0))
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:02", 1, 3, -75, t0))
	m.processCycle(t0)

	ticks := rec.takeTicks()
	require.Len(t, ticks, 2)
	assert.Equal(t, "all", ticks[0].region.ID)
	require.Len(t, ticks[0].beacons, 2)
	first := ticks[0].beacons[0]
	assert.Equal(t, -65, first.RSSI, "strongest first")
	assert.Equal(t, testUUID.String(), first.UUID())
	assert.Greater(t, first.Distance, 0.0)
	assert.Equal(t, "other", ticks[1].region.ID)
	assert.Empty(t, ticks[1].beacons)

	// an empty cycle still ticks every ranged region
	m.processCycle(t0.Add(time.Second))
	ticks = rec.takeTicks()
	require.Len(t, ticks, 2)
	assert.Empty(t, ticks[0].beacons)
}

func TestAdvertisementsDroppedBetweenScans(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	require.NoError(t, m.StartRanging(beacon.NewRegion("all")))

	t0 := time.Unix(1700000000, 0)
	m.setScanning(false)
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0))
	m.processCycle(t0)

	ticks := rec.takeTicks()
	require.Len(t, ticks, 1)
	assert.Empty(t, ticks[0].beacons)
}

func TestHardwareEquality(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	require.NoError(t, m.StartRanging(beacon.NewRegion("all")))
	m.setScanning(true)

	t0 := time.Unix(1700000000, 0)
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0))
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:02", 1, 2, -70, t0))
	m.processCycle(t0)
	ticks := rec.takeTicks()
	require.Len(t, ticks, 1)
	assert.Len(t, ticks[0].beacons, 1)

	m.SetHardwareEqualityEnforced(true)
	assert.True(t, m.HardwareEqualityEnforced())
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0))
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:02", 1, 2, -70, t0))
	m.processCycle(t0)
	ticks = rec.takeTicks()
	require.Len(t, ticks, 1)
	assert.Len(t, ticks[0].beacons, 2)
}

func TestExtraFrameAttachesTelemetry(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutEddystoneUID)))
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutEddystoneTLM)))
	require.NoError(t, m.StartRanging(beacon.NewRegion("all")))
	m.setScanning(true)

	t0 := time.Unix(1700000000, 0)
	mac := "AA:BB:CC:DD:EE:03"
	m.handleAdvertisement(bluetooth.Advertisement{
		MAC:      mac,
		RSSI:     -70,
		Services: []bluetooth.ServiceData{bluetooth.EddystoneUIDFrame([10]byte{1}, [6]byte{2}, -20)},
		SeenAt:   t0,
	})
	m.handleAdvertisement(bluetooth.Advertisement{
		MAC:      mac,
		RSSI:     -70,
		Services: []bluetooth.ServiceData{bluetooth.EddystoneTLMFrame(2900, 20, 5, 100)},
		SeenAt:   t0,
	})
	m.processCycle(t0)

	ticks := rec.takeTicks()
	require.Len(t, ticks, 1)
	require.Len(t, ticks[0].beacons, 1, "extra frames are never ranged alone")
	b := ticks[0].beacons[0]
	assert.Len(t, b.Identifiers, 2)
	assert.Equal(t, []uint64{0, 2900, 20 * 256, 5, 100}, b.ExtraDataFields)
}

func TestMonitoringTransitions(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	r := uuidRegion("home")
	require.NoError(t, m.StartMonitoring(r))
	m.setScanning(true)

	assert.Equal(t, RegionUnknown, m.RequestStateForRegion(r))
	assert.Equal(t, []RegionEvent{RegionUnknown}, rec.events())

	t0 := time.Unix(1700000000, 0)
	m.processCycle(t0)
	assert.Equal(t, []RegionEvent{RegionOutside}, rec.events())

	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0.Add(time.Second)))
	m.processCycle(t0.Add(time.Second))
	assert.Equal(t, []RegionEvent{RegionEntered, RegionInside}, rec.events())

	m.processCycle(t0.Add(5 * time.Second))
	assert.Empty(t, rec.events(), "still inside within the exit period")

	assert.Equal(t, RegionInside, m.RequestStateForRegion(r))
	assert.Equal(t, []RegionEvent{RegionInside}, rec.events())

	m.processCycle(t0.Add(12 * time.Second))
	assert.Equal(t, []RegionEvent{RegionExited, RegionOutside}, rec.events())

	m.processCycle(t0.Add(13 * time.Second))
	assert.Empty(t, rec.events())
}

func TestMonitoringFirstEvaluationInside(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	require.NoError(t, m.StartMonitoring(uuidRegion("home")))
	m.setScanning(true)

	t0 := time.Unix(1700000000, 0)
	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, t0))
	m.processCycle(t0)
	assert.Equal(t, []RegionEvent{RegionEntered, RegionInside}, rec.events())
}

func TestRequestStateForUnmonitoredRegion(t *testing.T) {
	m, _, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	m.setScanning(true)

	now := time.Now()
	m.now = func() time.Time { return now }
	assert.Equal(t, RegionOutside, m.RequestStateForRegion(uuidRegion("adhoc")))

	m.handleAdvertisement(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -65, now))
	assert.Equal(t, RegionInside, m.RequestStateForRegion(uuidRegion("adhoc")))
	assert.Equal(t, []RegionEvent{RegionOutside, RegionInside}, rec.events())
}

func TestScanPeriods(t *testing.T) {
	m, _, _ := newTestManager(t)
	scan, between := m.ScanPeriods()
	assert.Equal(t, 1100*time.Millisecond, scan)
	assert.Equal(t, time.Duration(0), between)

	m.SetBackgroundScanPeriod(2 * time.Second)
	m.SetBackgroundBetweenScanPeriod(time.Minute)
	m.SetBackgroundMode(true)
	scan, between = m.ScanPeriods()
	assert.Equal(t, 2*time.Second, scan)
	assert.Equal(t, time.Minute, between)

	m.SetForegroundScanPeriod(500 * time.Millisecond)
	m.SetForegroundBetweenScanPeriod(100 * time.Millisecond)
	m.SetBackgroundMode(false)
	scan, between = m.ScanPeriods()
	assert.Equal(t, 500*time.Millisecond, scan)
	assert.Equal(t, 100*time.Millisecond, between)
}

func TestScanCycleRuns(t *testing.T) {
	m, src, rec := newTestManager(t)
	require.NoError(t, m.AddParser(mustParser(t, beacon.LayoutIBeacon)))
	require.NoError(t, m.StartRanging(beacon.NewRegion("all")))
	m.SetForegroundScanPeriod(20 * time.Millisecond)

	c := newFakeConsumer()
	require.NoError(t, m.Bind(c))
	src.mu.Lock()
	handle := src.handle
	src.mu.Unlock()
	handle(iBeaconAdv("AA:BB:CC:DD:EE:01", 1, 2, -60, time.Now()))

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, tick := range rec.ticks {
			if len(tick.beacons) == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Unbind(c))
}

func TestCheckTransmissionSupported(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.Equal(t, 0, m.CheckTransmissionSupported())

	m = New(&fakeSource{}, bluetooth.MockTransmitter{Status: bluetooth.NotSupportedCannotGetAdvertiser}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 4, m.CheckTransmissionSupported())

	m = New(&fakeSource{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 2, m.CheckTransmissionSupported())
}

func TestSetRssiFilter(t *testing.T) {
	m, _, _ := newTestManager(t)
	cfg := beacon.DefaultFilterConfig()
	cfg.Kind = beacon.FilterARMA
	m.SetRssiFilter(cfg)
	assert.Equal(t, beacon.FilterARMA, m.RssiFilter().Kind)
}
