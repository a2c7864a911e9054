package query

import (
	"math"
	"sort"
	"time"

	"github.com/ibusnowden/MLRun/internal/metricstore"
)

// AlignmentMode names a compare_runs X-axis transform.
type AlignmentMode string

const (
	AlignStep         AlignmentMode = "step"
	AlignRelativeTime AlignmentMode = "relative_time"
	AlignAbsoluteTime AlignmentMode = "absolute_time"
	AlignProgress     AlignmentMode = "progress"
)

// alignedSample is one (x, value) observation of a single series after
// its X coordinate has been transformed into the common domain.
type alignedSample struct {
	x     float64
	value float64
}

// seriesInput is one (run, metric) series plus the run-level context the
// transforms need.
type seriesInput struct {
	RunID     string
	Name      string
	Points    []metricstore.Point
	StartedAt time.Time
}

// alignSeries maps a series' points into the common X domain for mode.
// relative_time and absolute_time are expressed in seconds with
// millisecond resolution; progress maps each step onto [0, 100] against
// the run's maximum observed step.
func alignSeries(in seriesInput, mode AlignmentMode) []alignedSample {
	samples := make([]alignedSample, 0, len(in.Points))

	var finalStep int64
	if mode == AlignProgress {
		for _, p := range in.Points {
			if p.Step > finalStep {
				finalStep = p.Step
			}
		}
	}

	for _, p := range in.Points {
		var x float64
		switch mode {
		case AlignRelativeTime:
			x = roundMs(p.WallTime.Sub(in.StartedAt).Seconds())
		case AlignAbsoluteTime:
			x = roundMs(float64(p.WallTime.UnixMilli()) / 1000)
		case AlignProgress:
			if finalStep == 0 {
				x = 100
			} else {
				x = float64(p.Step) / float64(finalStep) * 100
			}
		default:
			x = float64(p.Step)
		}
		samples = append(samples, alignedSample{x: x, value: p.Value})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].x < samples[j].x })
	// Collapse duplicate X positions (possible under progress rounding),
	// keeping the later observation.
	dedup := samples[:0]
	for _, s := range samples {
		if len(dedup) > 0 && dedup[len(dedup)-1].x == s.x {
			dedup[len(dedup)-1] = s
			continue
		}
		dedup = append(dedup, s)
	}
	return dedup
}

func roundMs(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

// commonAxis builds the sorted union of every series' observed X values,
// thinned to at most maxPoints by even index selection that always keeps
// the first and last value.
func commonAxis(series [][]alignedSample, maxPoints int) []float64 {
	set := map[float64]bool{}
	for _, s := range series {
		for _, sample := range s {
			set[sample.x] = true
		}
	}
	axis := make([]float64, 0, len(set))
	for x := range set {
		axis = append(axis, x)
	}
	sort.Float64s(axis)

	if maxPoints <= 0 || len(axis) <= maxPoints {
		return axis
	}
	thinned := make([]float64, 0, maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := i * (len(axis) - 1) / (maxPoints - 1)
		if len(thinned) > 0 && thinned[len(thinned)-1] == axis[idx] {
			continue
		}
		thinned = append(thinned, axis[idx])
	}
	return thinned
}

// sampleAt resolves one series at each axis position. An exact hit
// returns the observed value; a position strictly inside the series'
// observed range is linearly interpolated between its finite neighbors;
// anything outside the range — or between neighbors that cannot be
// interpolated — is an explicit gap, never an extrapolation.
func sampleAt(series []alignedSample, axis []float64) []alignedValue {
	out := make([]alignedValue, len(axis))
	j := 0
	for i, x := range axis {
		for j < len(series) && series[j].x < x {
			j++
		}
		switch {
		case len(series) == 0 || x < series[0].x || x > series[len(series)-1].x:
			out[i] = alignedValue{gap: true}
		case j < len(series) && series[j].x == x:
			out[i] = alignedValue{value: series[j].value}
		default:
			left, right := series[j-1], series[j]
			if !isFinite(left.value) || !isFinite(right.value) {
				out[i] = alignedValue{gap: true}
				continue
			}
			frac := (x - left.x) / (right.x - left.x)
			out[i] = alignedValue{value: left.value + frac*(right.value-left.value)}
		}
	}
	return out
}

type alignedValue struct {
	value float64
	gap   bool
}

// Align produces the common axis and each input series resolved against
// it.
func Align(inputs []seriesInput, mode AlignmentMode, maxPoints int) ([]float64, [][]alignedValue) {
	aligned := make([][]alignedSample, len(inputs))
	for i, in := range inputs {
		aligned[i] = alignSeries(in, mode)
	}
	axis := commonAxis(aligned, maxPoints)

	values := make([][]alignedValue, len(inputs))
	for i := range aligned {
		values[i] = sampleAt(aligned[i], axis)
	}
	return axis, values
}
