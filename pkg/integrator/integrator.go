// Package integrator turns a time series into its running time integral.
//
// Integrators sample the input on a uniform grid from 0 to the input's
// duration and return a series.Sampled holding the cumulative integral at each
// grid point. The returned series holds its last value past the end, so a
// residual velocity or displacement persists after the record stops.
package integrator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vjranagit/groundmotion/pkg/series"
)

var (
	// ErrMissingInputSeries is returned when there is no series to integrate
	ErrMissingInputSeries = errors.New("no input series to integrate")

	// ErrInvalidStep is returned for a non-positive or non-finite step
	ErrInvalidStep = errors.New("integration step must be positive")

	// ErrUnknownIntegrator is returned by New for an unregistered name
	ErrUnknownIntegrator = errors.New("unknown integrator")

	// ErrGridTooLarge is returned when duration/step exceeds MaxGridPoints
	ErrGridTooLarge = errors.New("integration grid too large")
)

// MaxGridPoints caps the number of points an integration grid may hold
const MaxGridPoints = 1 << 24

// Integrator computes the running integral of a time series
type Integrator interface {
	Integrate(s series.TimeSeries, step float64) (series.TimeSeries, error)
}

const (
	NameTrapezoidal = "trapezoidal"
	NameSimpson     = "simpson"
)

// New returns the integrator registered under name. An empty name selects
// the trapezoidal rule.
func New(name string) (Integrator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameTrapezoidal:
		return Trapezoidal{}, nil
	case NameSimpson:
		return Simpson{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
}

// Name returns the registered name of i, or "" if i is not a built-in
func Name(i Integrator) string {
	switch i.(type) {
	case Trapezoidal, *Trapezoidal:
		return NameTrapezoidal
	case Simpson, *Simpson:
		return NameSimpson
	default:
		return ""
	}
}

// sampleGrid evaluates s at every grid point t_i = i*step up to its duration
func sampleGrid(s series.TimeSeries, step float64) ([]float64, error) {
	if s == nil {
		return nil, ErrMissingInputSeries
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}

	duration := s.Duration()
	points := 1
	if duration > 0 {
		// tolerance keeps e.g. 0.2/0.01 from landing on 19.999...
		n := math.Floor(duration/step + 1e-9)
		if !(n < MaxGridPoints) {
			return nil, fmt.Errorf("%w: duration %v at step %v", ErrGridTooLarge, duration, step)
		}
		points = int(n) + 1
	}

	values := make([]float64, points)
	for i := range values {
		values[i] = s.FactorAt(float64(i) * step)
	}
	return values, nil
}

func integrated(s series.TimeSeries, values []float64, step float64) series.TimeSeries {
	return series.NewSampled(s.Tag(), values,
		series.WithStepIncrement(step),
		series.WithHoldLast(true),
	)
}
