package beacon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunningAverageFilter(t *testing.T) {
	f := &RunningAverageFilter{SampleExpiration: 10 * time.Second}
	t0 := time.Unix(1000, 0)

	assert.Equal(t, 0.0, f.Value(t0), "no samples")

	for i, rssi := range []int{-70, -60, -65, -62, -68, -64, -66, -61, -69, -20} {
		f.Add(rssi, t0.Add(time.Duration(i)*time.Second))
	}
	// ten samples: the lowest (-70) and the highest (-20) are trimmed
	got := f.Value(t0.Add(9 * time.Second))
	assert.InDelta(t, -64.375, got, 1e-9)

	// samples older than 10s expire
	f.Add(-50, t0.Add(25*time.Second))
	assert.InDelta(t, -50.0, f.Value(t0.Add(25*time.Second)), 1e-9)
}

func TestArmaFilter(t *testing.T) {
	f := &ArmaFilter{Speed: 0.5}
	now := time.Now()

	f.Add(-60, now)
	assert.Equal(t, -60.0, f.Value(now))

	f.Add(-80, now)
	assert.Equal(t, -70.0, f.Value(now))

	f.Add(-70, now)
	assert.Equal(t, -70.0, f.Value(now))
}

func TestFilterConfigWithModifier(t *testing.T) {
	c := DefaultFilterConfig()
	assert.Equal(t, FilterRunningAverage, c.Kind)

	c = c.WithModifier(5000)
	assert.Equal(t, 5*time.Second, c.SampleExpiration)

	c = c.WithModifier(0)
	assert.Equal(t, 5*time.Second, c.SampleExpiration, "non-positive modifier keeps the value")

	c.Kind = FilterARMA
	c = c.WithModifier(0.25)
	assert.Equal(t, 0.25, c.Speed)
	assert.Equal(t, 5*time.Second, c.SampleExpiration)

	_, isArma := c.New().(*ArmaFilter)
	assert.True(t, isArma)

	c.Kind = FilterRunningAverage
	_, isAvg := c.New().(*RunningAverageFilter)
	assert.True(t, isAvg)
}
