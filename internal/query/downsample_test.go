package query

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibusnowden/MLRun/internal/metricstore"
)

func series(values ...float64) []metricstore.Point {
	points := make([]metricstore.Point, len(values))
	for i, v := range values {
		points[i] = metricstore.Point{RunID: "r", MetricName: "m", Step: int64(i), Value: v}
	}
	return points
}

func sineSeries(n int) []metricstore.Point {
	points := make([]metricstore.Point, n)
	for i := range points {
		points[i] = metricstore.Point{RunID: "r", MetricName: "m", Step: int64(i), Value: math.Sin(float64(i) / 100)}
	}
	return points
}

func TestDownsample_UnderBudgetReturnsAll(t *testing.T) {
	points := sineSeries(100)
	for _, method := range []Method{MethodLTTB, MethodMinMax, MethodAvg, MethodFirst, MethodLast} {
		out := Downsample(points, 100, method)
		assert.Equal(t, points, out, "method %s", method)
	}
}

func TestDownsample_IsDeterministic(t *testing.T) {
	points := sineSeries(10000)
	for _, method := range []Method{MethodLTTB, MethodMinMax, MethodAvg, MethodFirst, MethodLast} {
		a := Downsample(points, 500, method)
		b := Downsample(points, 500, method)
		assert.Equal(t, a, b, "method %s", method)
	}
}

func TestLTTB_AlwaysKeepsEndpoints(t *testing.T) {
	points := sineSeries(10000)
	out := Downsample(points, 500, MethodLTTB)

	require.NotEmpty(t, out)
	assert.Equal(t, points[0], out[0])
	assert.Equal(t, points[len(points)-1], out[len(out)-1])
	assert.Len(t, out, 500)
}

func TestLTTB_OutputStaysInStepOrder(t *testing.T) {
	points := sineSeries(5000)
	out := Downsample(points, 100, MethodLTTB)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].Step, out[i].Step)
	}
}

func TestMinMax_KeepsExtremesOfEachBucket(t *testing.T) {
	// A flat line with one spike: min_max must retain the spike.
	points := series(1, 1, 1, 1, 1, 1, 100, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	out := Downsample(points, 4, MethodMinMax)

	var sawSpike bool
	for _, p := range out {
		if p.Value == 100 {
			sawSpike = true
		}
	}
	assert.True(t, sawSpike)
	assert.LessOrEqual(t, len(out), 4)

	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].Step, out[i].Step)
	}
}

func TestAverage_ExcludesNonFiniteFromMean(t *testing.T) {
	points := series(2, math.NaN(), 4, math.Inf(1))
	out := Downsample(points, 1, MethodAvg)

	require.Len(t, out, 1)
	assert.Equal(t, 3.0, out[0].Value)
}

func TestFirstLast_PickBucketBoundaries(t *testing.T) {
	points := series(0, 1, 2, 3, 4, 5, 6, 7)
	first := Downsample(points, 2, MethodFirst)
	require.Len(t, first, 2)
	assert.Equal(t, 0.0, first[0].Value)
	assert.Equal(t, 4.0, first[1].Value)

	last := Downsample(points, 2, MethodLast)
	require.Len(t, last, 2)
	assert.Equal(t, 3.0, last[0].Value)
	assert.Equal(t, 7.0, last[1].Value)
}

func TestComputeStats_OverFullRange(t *testing.T) {
	points := sineSeries(10000)
	stats := ComputeStats(points)

	assert.EqualValues(t, 10000, stats.Count)
	assert.Equal(t, points[len(points)-1].Value, stats.Last)

	// Statistics must be independent of any downsampling the caller does
	// afterwards.
	var minV, maxV, sum float64
	minV, maxV = points[0].Value, points[0].Value
	for _, p := range points {
		minV = math.Min(minV, p.Value)
		maxV = math.Max(maxV, p.Value)
		sum += p.Value
	}
	assert.Equal(t, minV, stats.Min)
	assert.Equal(t, maxV, stats.Max)
	assert.InDelta(t, sum/10000, stats.Mean, 1e-12)
}

func TestComputeStats_NonFiniteIgnoredExceptCountAndLast(t *testing.T) {
	points := series(1, math.NaN(), 3, math.Inf(-1))
	stats := ComputeStats(points)

	assert.EqualValues(t, 4, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 3.0, stats.Max)
	assert.Equal(t, 2.0, stats.Mean)
	assert.True(t, math.IsInf(stats.Last, -1))
}

func TestComputeStats_EmptySeries(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Zero(t, stats.Count)
	assert.True(t, math.IsNaN(stats.Min))
	assert.True(t, math.IsNaN(stats.Mean))
}
