package coordinator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ibusnowden/MLRun/internal/common/kerrors"
	"github.com/ibusnowden/MLRun/internal/metadata"
	"github.com/ibusnowden/MLRun/internal/rpc"
)

var (
	metricNameRegex  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9./_\-]{0,255}$`)
	identifierRegex  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	projectNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,127}$`)
)

// reservedMetricPrefix is claimed for server-generated series.
const reservedMetricPrefix = "_mlrun."

// clockSkewWindow bounds how far a client-supplied timestamp may deviate
// from the server clock before being clamped.
const clockSkewWindow = 24 * time.Hour

func validateIdentifier(name, value string) error {
	if !identifierRegex.MatchString(value) {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: name, Value: value,
			Message: "must be 1-64 characters of [A-Za-z0-9_-]",
		})
	}
	return nil
}

func validateProjectName(value string) error {
	if !projectNameRegex.MatchString(value) {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "project", Value: value,
			Message: "must be lowercase, start with a letter, and be at most 128 characters",
		})
	}
	return nil
}

// pointSize approximates a point's serialized footprint for the 1 MiB
// batch cap: name bytes plus the three fixed-width numeric fields.
func pointSize(p *rpc.MetricPoint) int {
	return len(p.Name) + 24
}

func validateBatchShape(req *rpc.LogMetricsRequest, maxPoints, maxBytes int) error {
	if err := validateIdentifier("run_id", req.RunId); err != nil {
		return err
	}
	if err := validateIdentifier("batch_id", req.BatchId); err != nil {
		return err
	}
	if len(req.Points) > maxPoints {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "points", Value: len(req.Points),
			Message: fmt.Sprintf("batch exceeds %d points", maxPoints),
		})
	}
	size := 0
	for _, p := range req.Points {
		size += pointSize(p)
	}
	if size > maxBytes {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "points", Value: size,
			Message: fmt.Sprintf("batch exceeds %d serialized bytes", maxBytes),
		})
	}
	return nil
}

// sanitizePoints applies per-point validation, dropping offenders and
// accumulating one warning per condition class. Valid points are returned
// with their timestamps resolved (defaulted to now, clamped into the skew
// window) and subnormal values flushed to zero.
func sanitizePoints(points []*rpc.MetricPoint, now time.Time) (valid []*rpc.MetricPoint, warnings []*rpc.Warning) {
	var invalidNames, negativeSteps, skewed int

	valid = make([]*rpc.MetricPoint, 0, len(points))
	for _, p := range points {
		if !metricNameRegex.MatchString(p.Name) || strings.HasPrefix(p.Name, reservedMetricPrefix) {
			invalidNames++
			continue
		}
		if p.Step < 0 {
			negativeSteps++
			continue
		}

		q := *p
		q.Value = flushSubnormal(q.Value)

		if q.TimestampMs == 0 {
			q.TimestampMs = now.UnixMilli()
		} else {
			ts := time.UnixMilli(q.TimestampMs)
			if ts.Before(now.Add(-clockSkewWindow)) {
				q.TimestampMs = now.Add(-clockSkewWindow).UnixMilli()
				skewed++
			} else if ts.After(now.Add(clockSkewWindow)) {
				q.TimestampMs = now.Add(clockSkewWindow).UnixMilli()
				skewed++
			}
		}
		valid = append(valid, &q)
	}

	if invalidNames > 0 {
		warnings = append(warnings, &rpc.Warning{
			Code:     rpc.WarnInvalidMetricName,
			Message:  fmt.Sprintf("%d point(s) dropped: metric name is invalid or uses a reserved prefix", invalidNames),
			Severity: rpc.SeverityWarning,
		})
	}
	if negativeSteps > 0 {
		warnings = append(warnings, &rpc.Warning{
			Code:     rpc.WarnStepNegative,
			Message:  fmt.Sprintf("%d point(s) dropped: step must be >= 0", negativeSteps),
			Severity: rpc.SeverityWarning,
		})
	}
	if skewed > 0 {
		warnings = append(warnings, &rpc.Warning{
			Code:     rpc.WarnClockSkew,
			Message:  fmt.Sprintf("%d point(s) had timestamps outside the accepted window and were clamped", skewed),
			Severity: rpc.SeverityInfo,
		})
	}
	return valid, warnings
}

// flushSubnormal maps subnormal doubles to (signed) zero; NaN and the
// infinities pass through untouched.
func flushSubnormal(v float64) float64 {
	if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) &&
		math.Float64bits(v)&0x7ff0000000000000 == 0 {
		return math.Copysign(0, v)
	}
	return v
}

func validateParams(params []*rpc.Param, maxEntries, maxValueBytes int) error {
	if len(params) > maxEntries {
		return errors.WithStack(&kerrors.ErrInvalidArgument{
			Name: "params", Value: len(params),
			Message: fmt.Sprintf("at most %d parameters per call", maxEntries),
		})
	}
	for _, p := range params {
		if p.Name == "" {
			return errors.WithStack(&kerrors.ErrInvalidArgument{Name: "params.name", Message: "parameter name is required"})
		}
		if len(p.Value) > maxValueBytes {
			return errors.WithStack(&kerrors.ErrInvalidArgument{
				Name: "params.value", Value: p.Name,
				Message: fmt.Sprintf("value exceeds %d bytes", maxValueBytes),
			})
		}
		switch metadata.ParamType(p.Type) {
		case metadata.ParamString, metadata.ParamFloat, metadata.ParamInt, metadata.ParamBool:
		case metadata.ParamJSON:
			if !json.Valid([]byte(p.Value)) {
				return errors.WithStack(&kerrors.ErrInvalidArgument{
					Name: "params.value", Value: p.Name,
					Message: "declared json but value is not valid JSON",
				})
			}
		default:
			return errors.WithStack(&kerrors.ErrInvalidArgument{
				Name: "params.type", Value: p.Type,
				Message: "must be one of string|float|int|bool|json",
			})
		}
	}
	return nil
}

func validateTags(set map[string]string, maxValueBytes int) error {
	for k, v := range set {
		if k == "" {
			return errors.WithStack(&kerrors.ErrInvalidArgument{Name: "tags.key", Message: "tag key is required"})
		}
		if len(v) > maxValueBytes {
			return errors.WithStack(&kerrors.ErrInvalidArgument{
				Name: "tags.value", Value: k,
				Message: fmt.Sprintf("value exceeds %d bytes", maxValueBytes),
			})
		}
	}
	return nil
}
