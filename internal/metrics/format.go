package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const mebibyte = 1024 * 1024

// FormatValue parses an API value and rounds it to two decimals. Byte rates
// above one MiB/s are converted to MiB/s.
func FormatValue(raw string, unit string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse metric value %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("metric value %q is not finite", raw)
	}
	if unit == UnitBytes && v > mebibyte {
		return round2(v / mebibyte), nil
	}
	return round2(v), nil
}

// UnitLabel returns the axis label for a unit. Byte rates are always labelled
// MB/s, including values too small to have been converted.
func UnitLabel(unit string) string {
	if unit == UnitBytes {
		return "MB/s"
	}
	return unit
}

// FormatTimeLabel renders a point's axis label for the active range.
func FormatTimeLabel(t time.Time, r TimeRange) string {
	switch {
	case r.Minutes > 1440:
		return fmt.Sprintf("%d/%d %d:%02d", int(t.Month()), t.Day(), t.Hour(), t.Minute())
	case r.Minutes > 60:
		return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
	}
	return fmt.Sprintf("%d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
