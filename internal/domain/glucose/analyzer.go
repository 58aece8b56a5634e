// Package glucose reduces CGM readings to a stability score and clinical flags.
package glucose

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Analyze scores the series with DefaultThresholds.
func Analyze(values []float64) Result {
	return DefaultThresholds.Analyze(values)
}

// Analyze computes stability = max(0, 100 - penalty*σ) using the population
// standard deviation. Order of readings does not matter.
func (t Thresholds) Analyze(values []float64) Result {
	if len(values) == 0 {
		return Result{StabilityScore: 0, Flags: []Flag{}}
	}

	sd := stdDev(values)
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	flags := make([]Flag, 0, 3)
	if maxVal > t.SpikeAbove {
		flags = append(flags, FlagSpike)
	}
	if minVal < t.CrashBelow {
		flags = append(flags, FlagCrash)
	}
	if sd > t.VariabilityAbove {
		flags = append(flags, FlagHighVariability)
	}

	return Result{
		StabilityScore: round2(math.Max(0, 100-sd*t.StdDevPenalty)),
		Flags:          flags,
	}
}

func stdDev(values []float64) float64 {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / n)
}

// round2 rounds to two decimals, ties to even.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// ErrInvalidReading is returned by ParseReadings for a non-numeric token.
var ErrInvalidReading = errors.New("invalid glucose reading")

// ParseReadings parses manual entry of the form "90, 100, 105".
// Blank input is an empty series.
func ParseReadings(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []float64{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for i, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w at position %d: %q", ErrInvalidReading, i+1, token)
		}
		out = append(out, v)
	}
	return out, nil
}
