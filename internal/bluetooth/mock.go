package bluetooth

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"beacon-bridge.klederson.com/internal/config"
)

// IBeaconFrame builds Apple iBeacon manufacturer data.
func IBeaconFrame(proximity uuid.UUID, major, minor uint16, txPower int8) ManufacturerData {
	data := make([]byte, 0, 23)
	data = append(data, 0x02, 0x15)
	data = append(data, proximity[:]...)
	data = binary.BigEndian.AppendUint16(data, major)
	data = binary.BigEndian.AppendUint16(data, minor)
	data = append(data, byte(txPower))
	return ManufacturerData{CompanyID: CompanyApple, Data: data}
}

// AltBeaconFrame builds AltBeacon manufacturer data. The 16 byte id is
// followed by two 2 byte ids, the reference RSSI and one reserved byte.
func AltBeaconFrame(company uint16, id uuid.UUID, id2, id3 uint16, refRSSI int8, reserved byte) ManufacturerData {
	data := make([]byte, 0, 24)
	data = append(data, 0xbe, 0xac)
	data = append(data, id[:]...)
	data = binary.BigEndian.AppendUint16(data, id2)
	data = binary.BigEndian.AppendUint16(data, id3)
	data = append(data, byte(refRSSI), reserved)
	return ManufacturerData{CompanyID: company, Data: data}
}

// EddystoneUIDFrame builds an Eddystone-UID service data frame. txPower is
// the calibrated power at 0 m.
func EddystoneUIDFrame(namespace [10]byte, instance [6]byte, txPower int8) ServiceData {
	data := make([]byte, 0, 20)
	data = append(data, 0x00, byte(txPower))
	data = append(data, namespace[:]...)
	data = append(data, instance[:]...)
	data = append(data, 0x00, 0x00)
	return ServiceData{UUID: ServiceEddystone, Data: data}
}

// EddystoneTLMFrame builds an unencrypted Eddystone-TLM frame. Temperature
// is encoded as signed 8.8 fixed point, uptime in tenths of a second.
func EddystoneTLMFrame(batteryMV uint16, celsius float64, advCount, uptime uint32) ServiceData {
	data := make([]byte, 0, 14)
	data = append(data, 0x20, 0x00)
	data = binary.BigEndian.AppendUint16(data, batteryMV)
	data = binary.BigEndian.AppendUint16(data, uint16(int16(math.Round(celsius*256))))
	data = binary.BigEndian.AppendUint32(data, advCount)
	data = binary.BigEndian.AppendUint32(data, uptime)
	return ServiceData{UUID: ServiceEddystone, Data: data}
}

type mockBeacon struct {
	mac       string
	name      string
	baseRSSI  float64
	phase     float64
	amplitude float64
	active    bool

	manufacturer []ManufacturerData
	services     []ServiceData
	telemetry    bool // appends an Eddystone-TLM frame on every emission
}

// MockScanner generates fake beacons for demo mode.
type MockScanner struct {
	rng     *rand.Rand
	beacons []mockBeacon

	mu      sync.Mutex
	cancel  context.CancelFunc
	advSent uint32
}

// NewMockScanner creates a mock scanner whose iBeacon and AltBeacon devices
// share the given proximity UUID.
func NewMockScanner(proximity uuid.UUID) *MockScanner {
	return newMockScanner(proximity, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newMockScanner(proximity uuid.UUID, rng *rand.Rand) *MockScanner {
	var namespace [10]byte
	copy(namespace[:], proximity[:10])
	instance := [6]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

	s := &MockScanner{rng: rng}
	add := func(name string, mfr []ManufacturerData, svc []ServiceData, tlm bool) {
		s.beacons = append(s.beacons, mockBeacon{
			mac:          randomMAC(rng),
			name:         name,
			baseRSSI:     -45 - rng.Float64()*40, // -45 to -85 dBm
			phase:        rng.Float64() * 2 * math.Pi,
			amplitude:    3 + rng.Float64()*8, // 3-11 dBm fluctuation
			active:       true,
			manufacturer: mfr,
			services:     svc,
			telemetry:    tlm,
		})
	}

	add("Lobby", []ManufacturerData{IBeaconFrame(proximity, 1, 1, -59)}, nil, false)
	add("Kitchen", []ManufacturerData{IBeaconFrame(proximity, 1, 2, -59)}, nil, false)
	add("Garage", []ManufacturerData{IBeaconFrame(proximity, 2, 1, -62)}, nil, false)
	add("", []ManufacturerData{AltBeaconFrame(CompanyRadius, proximity, 3, 7, -60, 0x2a)}, nil, false)
	add("", nil, []ServiceData{EddystoneUIDFrame(namespace, instance, -20)}, true)
	// nearby phone, not a beacon
	add("", []ManufacturerData{{CompanyID: CompanyApple, Data: []byte{0x10, 0x05, 0x01, 0x18, 0x4f, 0x3a, 0x91}}}, nil, false)

	return s
}

// Start begins the mock scanner.
func (s *MockScanner) Start(ctx context.Context, handle Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(ctx, handle)
	return nil
}

func (s *MockScanner) loop(ctx context.Context, handle Handler) {
	ticker := time.NewTicker(config.DemoEmitInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, adv := range s.tick(now, now.Sub(start).Seconds()) {
				handle(adv)
			}
		}
	}
}

// tick advances the simulation to t seconds and returns the advertisements
// broadcast at that instant.
func (s *MockScanner) tick(now time.Time, t float64) []Advertisement {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Advertisement, 0, len(s.beacons))
	for i := range s.beacons {
		b := &s.beacons[i]

		// Randomly toggle beacon visibility (appear/disappear)
		if s.rng.Float64() < 0.005 {
			b.active = !b.active
		}
		if !b.active {
			continue
		}

		// Sinusoidal RSSI fluctuation + noise
		rssi := b.baseRSSI + b.amplitude*math.Sin(t*0.5+b.phase) + (s.rng.Float64()-0.5)*4

		s.advSent++
		adv := Advertisement{
			MAC:          b.mac,
			Name:         b.name,
			RSSI:         int16(rssi),
			Manufacturer: b.manufacturer,
			Services:     b.services,
			SeenAt:       now,
		}
		out = append(out, adv)

		if b.telemetry {
			tlm := adv
			tlm.Services = []ServiceData{EddystoneTLMFrame(3000, 21.5+math.Sin(t/60), s.advSent, uint32(t*10))}
			out = append(out, tlm)
		}
	}
	return out
}

// Stop halts the mock scanner.
func (s *MockScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func randomMAC(rng *rand.Rand) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}
