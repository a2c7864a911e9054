// Package query implements the read-side query engine: run listing with
// filter/sort/cursor semantics delegated to the metadata gateway, metric
// fetches with server-side downsampling, and multi-run alignment for
// comparison views.
package query

import (
	"math"

	"github.com/ibusnowden/MLRun/internal/metricstore"
)

// Method names a downsampling algorithm.
type Method string

const (
	MethodLTTB   Method = "lttb"
	MethodMinMax Method = "min_max"
	MethodAvg    Method = "average"
	MethodFirst  Method = "first"
	MethodLast   Method = "last"
)

// Stats are computed over the full unsampled range. Min/max/mean ignore
// non-finite values; count and last do not.
type Stats struct {
	Min   float64
	Max   float64
	Mean  float64
	Last  float64
	Count int64
}

// ComputeStats folds the full series once, before any downsampling.
func ComputeStats(points []metricstore.Point) Stats {
	s := Stats{Count: int64(len(points)), Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	if len(points) == 0 {
		return s
	}
	s.Last = points[len(points)-1].Value

	var sum float64
	var finite int64
	for _, p := range points {
		if !isFinite(p.Value) {
			continue
		}
		if finite == 0 {
			s.Min, s.Max = p.Value, p.Value
		} else {
			s.Min = math.Min(s.Min, p.Value)
			s.Max = math.Max(s.Max, p.Value)
		}
		sum += p.Value
		finite++
	}
	if finite > 0 {
		s.Mean = sum / float64(finite)
	}
	return s
}

// Downsample reduces points (already in step order) to at most maxPoints
// using the named method. A series at or under the budget is returned
// unchanged. All methods are deterministic: the same input and arguments
// always select the same points.
func Downsample(points []metricstore.Point, maxPoints int, method Method) []metricstore.Point {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}
	switch method {
	case MethodMinMax:
		return downsampleMinMax(points, maxPoints)
	case MethodAvg:
		return downsampleAverage(points, maxPoints)
	case MethodFirst:
		return downsamplePerBucket(points, maxPoints, func(bucket []metricstore.Point) metricstore.Point {
			return bucket[0]
		})
	case MethodLast:
		return downsamplePerBucket(points, maxPoints, func(bucket []metricstore.Point) metricstore.Point {
			return bucket[len(bucket)-1]
		})
	default:
		return downsampleLTTB(points, maxPoints)
	}
}

// buckets partitions the step span into k equal intervals and returns the
// non-empty runs of points falling in each, preserving step order.
func buckets(points []metricstore.Point, k int) [][]metricstore.Point {
	if k < 1 {
		k = 1
	}
	lo := points[0].Step
	hi := points[len(points)-1].Step
	width := float64(hi-lo+1) / float64(k)

	out := make([][]metricstore.Point, 0, k)
	start := 0
	for b := 1; b <= k && start < len(points); b++ {
		end := start
		bound := float64(lo) + float64(b)*width
		for end < len(points) && (b == k || float64(points[end].Step) < bound) {
			end++
		}
		if end > start {
			out = append(out, points[start:end])
			start = end
		}
	}
	return out
}

// downsampleLTTB is Largest-Triangle-Three-Buckets over the step span:
// the first and last underlying points are always emitted unchanged, and
// each interior bucket contributes the point forming the largest triangle
// with the previously emitted point and the centroid of the next bucket.
// Ties break toward the lowest step.
func downsampleLTTB(points []metricstore.Point, maxPoints int) []metricstore.Point {
	if maxPoints < 3 {
		maxPoints = 3
	}
	interior := points[1 : len(points)-1]
	out := make([]metricstore.Point, 0, maxPoints)
	out = append(out, points[0])

	if len(interior) > 0 {
		bs := buckets(interior, maxPoints-2)
		prev := points[0]
		for i, bucket := range bs {
			var next []metricstore.Point
			if i+1 < len(bs) {
				next = bs[i+1]
			} else {
				next = points[len(points)-1:]
			}
			cx, cy := centroid(next)

			best := bucket[0]
			bestArea := -1.0
			for _, p := range bucket {
				area := triangleArea(float64(prev.Step), prev.Value, float64(p.Step), p.Value, cx, cy)
				if area > bestArea {
					bestArea = area
					best = p
				}
			}
			out = append(out, best)
			prev = best
		}
	}
	return append(out, points[len(points)-1])
}

// triangleArea is the shoelace formula's absolute value. Non-finite
// sample values are treated as zero height so NaN never poisons the
// comparison and point selection stays deterministic.
func triangleArea(x1, y1, x2, y2, x3, y3 float64) float64 {
	y1, y2, y3 = zeroIfNotFinite(y1), zeroIfNotFinite(y2), zeroIfNotFinite(y3)
	return math.Abs(x1*(y2-y3)+x2*(y3-y1)+x3*(y1-y2)) / 2
}

func centroid(bucket []metricstore.Point) (float64, float64) {
	var sx, sy float64
	for _, p := range bucket {
		sx += float64(p.Step)
		sy += zeroIfNotFinite(p.Value)
	}
	n := float64(len(bucket))
	return sx / n, sy / n
}

// downsampleMinMax emits the argmin and argmax of each of maxPoints/2
// buckets in step order, which doubles the nominal per-bucket density and
// preserves spikes the other methods may smooth away.
func downsampleMinMax(points []metricstore.Point, maxPoints int) []metricstore.Point {
	k := maxPoints / 2
	if k < 1 {
		k = 1
	}
	out := make([]metricstore.Point, 0, maxPoints)
	for _, bucket := range buckets(points, k) {
		minIdx, maxIdx := 0, 0
		for i, p := range bucket {
			if !isFinite(p.Value) {
				continue
			}
			if !isFinite(bucket[minIdx].Value) || p.Value < bucket[minIdx].Value {
				minIdx = i
			}
			if !isFinite(bucket[maxIdx].Value) || p.Value > bucket[maxIdx].Value {
				maxIdx = i
			}
		}
		if minIdx == maxIdx {
			out = append(out, bucket[minIdx])
			continue
		}
		if minIdx < maxIdx {
			out = append(out, bucket[minIdx], bucket[maxIdx])
		} else {
			out = append(out, bucket[maxIdx], bucket[minIdx])
		}
	}
	return out
}

// downsampleAverage emits one synthetic point per bucket at the bucket's
// midpoint step carrying the arithmetic mean of its finite values.
// Buckets with no finite value carry NaN.
func downsampleAverage(points []metricstore.Point, maxPoints int) []metricstore.Point {
	out := make([]metricstore.Point, 0, maxPoints)
	for _, bucket := range buckets(points, maxPoints) {
		var sum float64
		var finite int
		for _, p := range bucket {
			if isFinite(p.Value) {
				sum += p.Value
				finite++
			}
		}
		mean := math.NaN()
		if finite > 0 {
			mean = sum / float64(finite)
		}
		mid := bucket[len(bucket)/2]
		out = append(out, metricstore.Point{
			RunID:        mid.RunID,
			MetricName:   mid.MetricName,
			Step:         (bucket[0].Step + bucket[len(bucket)-1].Step) / 2,
			Value:        mean,
			WallTime:     mid.WallTime,
			RelativeTime: mid.RelativeTime,
		})
	}
	return out
}

func downsamplePerBucket(points []metricstore.Point, maxPoints int, pick func([]metricstore.Point) metricstore.Point) []metricstore.Point {
	out := make([]metricstore.Point, 0, maxPoints)
	for _, bucket := range buckets(points, maxPoints) {
		out = append(out, pick(bucket))
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func zeroIfNotFinite(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}
