package beacon

import (
	"fmt"
	"math"
	"sort"
	"time"

	"beacon-bridge.klederson.com/internal/config"
)

// FilterKind selects the RSSI smoothing strategy. Values are part of the
// caller contract (RUNNING_AVG_RSSI_FILTER / ARMA_RSSI_FILTER).
type FilterKind int

const (
	FilterRunningAverage FilterKind = 0
	FilterARMA           FilterKind = 1
)

func (k FilterKind) String() string {
	switch k {
	case FilterRunningAverage:
		return "running_average"
	case FilterARMA:
		return "arma"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// RssiFilter smooths the RSSI samples of a single beacon.
type RssiFilter interface {
	Add(rssi int, at time.Time)
	Value(now time.Time) float64
}

// FilterConfig is the process-wide RSSI filter selection.
type FilterConfig struct {
	Kind             FilterKind
	SampleExpiration time.Duration // running average only
	Speed            float64       // ARMA only
}

// DefaultFilterConfig is a running average over 20 seconds of samples.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Kind:             FilterRunningAverage,
		SampleExpiration: config.RunningAverageSampleExpiration,
		Speed:            config.ArmaSpeed,
	}
}

// WithModifier returns a copy of c with the strategy's tuning parameter
// overridden. Non-positive modifiers leave the current value in place.
// For the running average the modifier is in milliseconds.
func (c FilterConfig) WithModifier(modifier float64) FilterConfig {
	if modifier <= 0 {
		return c
	}
	switch c.Kind {
	case FilterRunningAverage:
		c.SampleExpiration = time.Duration(modifier * float64(time.Millisecond))
	case FilterARMA:
		c.Speed = modifier
	}
	return c
}

// New returns a fresh filter for one beacon.
func (c FilterConfig) New() RssiFilter {
	if c.Kind == FilterARMA {
		return &ArmaFilter{Speed: c.Speed}
	}
	return &RunningAverageFilter{SampleExpiration: c.SampleExpiration}
}

type rssiSample struct {
	rssi int
	at   time.Time
}

// RunningAverageFilter averages the samples received within
// SampleExpiration, discarding the top and bottom 10 percent.
type RunningAverageFilter struct {
	SampleExpiration time.Duration
	samples          []rssiSample
}

func (f *RunningAverageFilter) Add(rssi int, at time.Time) {
	f.samples = append(f.samples, rssiSample{rssi: rssi, at: at})
}

func (f *RunningAverageFilter) Value(now time.Time) float64 {
	cutoff := now.Add(-f.SampleExpiration)
	kept := f.samples[:0]
	for _, s := range f.samples {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	f.samples = kept
	if len(kept) == 0 {
		return 0
	}

	values := make([]int, len(kept))
	for i, s := range kept {
		values[i] = s.rssi
	}
	sort.Ints(values)

	start, end := 0, len(values)
	if len(values) > 2 {
		trim := int(math.Floor(float64(len(values)) * config.RunningAverageTrim))
		start, end = trim, len(values)-trim
	}

	sum := 0
	for _, v := range values[start:end] {
		sum += v
	}
	return float64(sum) / float64(end-start)
}

// ArmaFilter is an auto-regressive moving average: each sample moves the
// estimate towards it by Speed.
type ArmaFilter struct {
	Speed  float64
	value  float64
	primed bool
}

func (f *ArmaFilter) Add(rssi int, _ time.Time) {
	if !f.primed {
		f.value = float64(rssi)
		f.primed = true
		return
	}
	f.value -= f.Speed * (f.value - float64(rssi))
}

func (f *ArmaFilter) Value(time.Time) float64 {
	return f.value
}
