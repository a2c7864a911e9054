package query

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibusnowden/MLRun/internal/metricstore"
)

func stepSeries(runID string, steps ...int64) seriesInput {
	points := make([]metricstore.Point, len(steps))
	for i, s := range steps {
		points[i] = metricstore.Point{RunID: runID, MetricName: "loss", Step: s, Value: float64(s) * 10}
	}
	return seriesInput{RunID: runID, Name: "loss", Points: points}
}

func TestAlign_StepModeUnionAxis(t *testing.T) {
	a := stepSeries("a", 0, 2, 4)
	b := stepSeries("b", 1, 2, 3)

	axis, values := Align([]seriesInput{a, b}, AlignStep, 0)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, axis)
	require.Len(t, values, 2)

	// Run a observed 0, 2, 4; 1 and 3 are interior and interpolate.
	assert.False(t, values[0][0].gap)
	assert.Equal(t, 0.0, values[0][0].value)
	assert.False(t, values[0][1].gap)
	assert.Equal(t, 10.0, values[0][1].value)
	assert.Equal(t, 40.0, values[0][4].value)

	// Run b never observed 0 or 4: both are outside its range and must be
	// gaps, never extrapolations.
	assert.True(t, values[1][0].gap)
	assert.True(t, values[1][4].gap)
	assert.False(t, values[1][2].gap)
	assert.Equal(t, 20.0, values[1][2].value)
}

func TestAlign_GapIsDistinctFromZero(t *testing.T) {
	a := seriesInput{RunID: "a", Name: "m", Points: []metricstore.Point{
		{Step: 0, Value: 0}, {Step: 2, Value: 0},
	}}
	b := stepSeries("b", 1)

	_, values := Align([]seriesInput{a, b}, AlignStep, 0)
	// Run a's value at x=1 interpolates to a genuine 0, not a gap.
	assert.False(t, values[0][1].gap)
	assert.Equal(t, 0.0, values[0][1].value)
	// Run b at x=0 has no data: gap, whatever the value field holds.
	assert.True(t, values[1][0].gap)
}

func TestAlign_NonFiniteNeighborsDoNotInterpolate(t *testing.T) {
	a := seriesInput{RunID: "a", Name: "m", Points: []metricstore.Point{
		{Step: 0, Value: 1}, {Step: 2, Value: math.NaN()}, {Step: 4, Value: 5},
	}}
	b := stepSeries("b", 1, 3)

	_, values := Align([]seriesInput{a, b}, AlignStep, 0)
	// x=1 sits between value 1 and NaN: no defensible interpolation.
	assert.True(t, values[0][1].gap)
	// x=3 sits between NaN and 5: same.
	assert.True(t, values[0][3].gap)
}

func TestAlign_RelativeTimeMode(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := seriesInput{
		RunID: "a", Name: "m", StartedAt: started,
		Points: []metricstore.Point{
			{Step: 0, Value: 1, WallTime: started},
			{Step: 1, Value: 2, WallTime: started.Add(1500 * time.Millisecond)},
		},
	}
	axis, values := Align([]seriesInput{in}, AlignRelativeTime, 0)
	assert.Equal(t, []float64{0, 1.5}, axis)
	assert.Equal(t, 1.0, values[0][0].value)
	assert.Equal(t, 2.0, values[0][1].value)
}

func TestAlign_AbsoluteTimeMode(t *testing.T) {
	wall := time.Unix(1714564800, 250_000_000).UTC()
	in := seriesInput{RunID: "a", Name: "m", Points: []metricstore.Point{
		{Step: 0, Value: 1, WallTime: wall},
	}}
	axis, _ := Align([]seriesInput{in}, AlignAbsoluteTime, 0)
	require.Len(t, axis, 1)
	assert.Equal(t, 1714564800.25, axis[0])
}

func TestAlign_ProgressMode(t *testing.T) {
	a := stepSeries("a", 0, 5, 10)
	b := stepSeries("b", 0, 10, 20)

	axis, values := Align([]seriesInput{a, b}, AlignProgress, 0)
	// Both runs map onto [0, 100]: a's steps hit 0/50/100, b's hit 0/50/100.
	assert.Equal(t, []float64{0, 50, 100}, axis)
	assert.Equal(t, 100.0, values[0][2].value)
	assert.Equal(t, 200.0, values[1][2].value)
}

func TestAlign_ProgressModeSingleStepRun(t *testing.T) {
	a := stepSeries("a", 0)
	axis, values := Align([]seriesInput{a}, AlignProgress, 0)
	assert.Equal(t, []float64{100}, axis)
	assert.False(t, values[0][0].gap)
}

func TestCommonAxis_ThinsToMaxPointsKeepingEndpoints(t *testing.T) {
	in := stepSeries("a", 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	axis, _ := Align([]seriesInput{in}, AlignStep, 4)
	require.Len(t, axis, 4)
	assert.Equal(t, 0.0, axis[0])
	assert.Equal(t, 9.0, axis[len(axis)-1])
}

func TestAlign_DeterministicOutput(t *testing.T) {
	a := stepSeries("a", 0, 3, 7, 9)
	b := stepSeries("b", 1, 4, 9)
	axis1, v1 := Align([]seriesInput{a, b}, AlignStep, 5)
	axis2, v2 := Align([]seriesInput{a, b}, AlignStep, 5)
	assert.Equal(t, axis1, axis2)
	assert.Equal(t, v1, v2)
}
