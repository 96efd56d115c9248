package bluetooth

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-bridge.klederson.com/internal/beacon"
)

var demoUUID = uuid.MustParse("2f234454-cf6d-4a0f-adf2-f4911ba9ffa6")

func TestFramesDecode(t *testing.T) {
	ib, err := beacon.ParseLayout(beacon.LayoutIBeacon)
	require.NoError(t, err)
	b, ok := ib.Decode(IBeaconFrame(demoUUID, 4, 9, -59).PDU(), false)
	require.True(t, ok)
	major, minor, ok := b.MajorMinor()
	require.True(t, ok)
	assert.Equal(t, demoUUID.String(), b.UUID())
	assert.Equal(t, 4, major)
	assert.Equal(t, 9, minor)

	alt, err := beacon.ParseLayout(beacon.LayoutAltBeacon)
	require.NoError(t, err)
	b, ok = alt.Decode(AltBeaconFrame(CompanyRadius, demoUUID, 3, 7, -60, 0x2a).PDU(), false)
	require.True(t, ok)
	assert.Equal(t, -60, b.TxPower)
	assert.Equal(t, []uint64{0x2a}, b.DataFields)

	uid, err := beacon.ParseLayout(beacon.LayoutEddystoneUID)
	require.NoError(t, err)
	frame := EddystoneUIDFrame([10]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, [6]byte{0, 0, 0, 0, 0, 1}, -20)
	b, ok = uid.Decode(frame.PDU(), true)
	require.True(t, ok)
	assert.Equal(t, "0x0102030405060708090a", b.UUID())

	tlm, err := beacon.ParseLayout(beacon.LayoutEddystoneTLM)
	require.NoError(t, err)
	b, ok = tlm.Decode(EddystoneTLMFrame(3000, 21.5, 12, 340).PDU(), true)
	require.True(t, ok)
	assert.Equal(t, []uint64{0, 3000, 21*256 + 128, 12, 340}, b.DataFields)
}

func TestMockScannerTick(t *testing.T) {
	s := newMockScanner(demoUUID, rand.New(rand.NewSource(1)))
	now := time.Unix(1700000000, 0)

	advs := s.tick(now, 0.2)

	want, telemetry := 0, 0
	for _, b := range s.beacons {
		if b.active {
			want++
			if b.telemetry {
				want++
				telemetry++
			}
		}
	}
	require.Len(t, advs, want)

	macs := map[string]bool{}
	for _, a := range advs {
		assert.Equal(t, now, a.SeenAt)
		assert.Less(t, a.RSSI, int16(0))
		assert.Len(t, a.MAC, 17)
		macs[a.MAC] = true
	}
	// telemetry frames share the address of their beacon
	assert.Len(t, macs, len(advs)-telemetry)
}

func TestMockScannerStartStop(t *testing.T) {
	s := NewMockScanner(demoUUID)
	got := make(chan Advertisement, 64)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, func(a Advertisement) {
		select {
		case got <- a:
		default:
		}
	}))
	require.NoError(t, s.Start(ctx, func(Advertisement) {}), "second start is a no-op")

	select {
	case a := <-got:
		assert.NotEmpty(t, a.MAC)
	case <-time.After(2 * time.Second):
		t.Fatal("no advertisement received")
	}
	s.Stop()
	s.Stop()
}
