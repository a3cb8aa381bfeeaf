// Package series defines the time-series contract used to describe ground
// motion and the uniformly sampled implementation backing every record.
package series

import "errors"

// ErrNoData is returned when a source yields no usable samples.
var ErrNoData = errors.New("series has no data")

// TimeSeries maps a pseudo-time onto a scalar factor.
type TimeSeries interface {
	// Tag identifies the series to its owner
	Tag() int

	// FactorAt returns the value of the series at time t
	FactorAt(t float64) float64

	// Duration returns the time at which the series ends
	Duration() float64

	// PeakFactor returns the largest absolute value of the series
	PeakFactor() float64

	// StepIncrementAt returns the sample spacing in effect at time t
	StepIncrementAt(t float64) float64

	// Copy returns an independent deep copy
	Copy() TimeSeries
}
