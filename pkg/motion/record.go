// Package motion implements a ground motion record: up to three time series
// (acceleration, velocity, displacement) answering scaled point and peak
// queries for use as a dynamic load.
//
// Missing series are derived by integration along acceleration -> velocity ->
// displacement, never in reverse. Derived series are cached for the life of
// the record.
//
// A Record mutates on read (lazy derivation and the shared result buffer of
// DispVelAccelAt), so it is not safe for concurrent use.
package motion

import (
	"log/slog"

	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/series"
)

// Record is a ground motion record
type Record struct {
	accel series.TimeSeries
	vel   series.TimeSeries
	disp  series.TimeSeries

	integrator integrator.Integrator
	step       float64
	factor     float64

	// scratch for DispVelAccelAt
	data [3]float64

	logger *slog.Logger
}

// Option configures a Record
type Option func(*Record)

// WithAcceleration hands an acceleration series to the record
func WithAcceleration(s series.TimeSeries) Option {
	return func(r *Record) { r.accel = s }
}

// WithVelocity hands a velocity series to the record
func WithVelocity(s series.TimeSeries) Option {
	return func(r *Record) { r.vel = s }
}

// WithDisplacement hands a displacement series to the record
func WithDisplacement(s series.TimeSeries) Option {
	return func(r *Record) { r.disp = s }
}

// WithIntegrator sets the integrator used to derive missing series. Without
// it the trapezoidal rule is used.
func WithIntegrator(in integrator.Integrator) Option {
	return func(r *Record) { r.integrator = in }
}

// WithIntegrationStep sets the grid spacing used when integrating. A value
// <= 0 means the sample spacing of the acceleration (or velocity) series.
func WithIntegrationStep(step float64) Option {
	return func(r *Record) { r.step = step }
}

// WithScaleFactor sets the factor applied to every returned value
func WithScaleFactor(factor float64) Option {
	return func(r *Record) { r.factor = factor }
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Record) { r.logger = logger }
}

// New creates a record from whatever series are available. Series passed in
// are owned by the record from then on.
//
// Velocity is derived from acceleration, then displacement from velocity,
// for whichever of the two is missing.
func New(opts ...Option) *Record {
	r := &Record{factor: 1.0}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "motion")

	if r.step <= 0 {
		switch {
		case r.accel != nil:
			r.step = r.accel.StepIncrementAt(0)
		case r.vel != nil:
			r.step = r.vel.StepIncrementAt(0)
		}
	}

	if r.accel != nil && r.vel == nil {
		r.vel = r.integrate(r.accel)
	}
	if r.vel != nil && r.disp == nil {
		r.disp = r.integrate(r.vel)
	}

	return r
}

// integrate returns the integral of s or nil on failure
func (r *Record) integrate(s series.TimeSeries) series.TimeSeries {
	if r.integrator == nil {
		r.integrator = integrator.Trapezoidal{}
	}

	out, err := r.integrator.Integrate(s, r.step)
	if err != nil {
		r.logger.Warn("failed to integrate series", "step", r.step, "error", err)
		return nil
	}
	return out
}

// SetIntegrator replaces the integrator used for future derivations. Series
// already derived are kept.
func (r *Record) SetIntegrator(in integrator.Integrator) {
	r.integrator = in
}

// Copy returns a deep copy of the record and every series it owns
func (r *Record) Copy() *Record {
	cp := &Record{
		integrator: r.integrator,
		step:       r.step,
		factor:     r.factor,
		logger:     r.logger,
	}
	if r.accel != nil {
		cp.accel = r.accel.Copy()
	}
	if r.vel != nil {
		cp.vel = r.vel.Copy()
	}
	if r.disp != nil {
		cp.disp = r.disp.Copy()
	}
	return cp
}

// Acceleration returns the acceleration series, or nil
func (r *Record) Acceleration() series.TimeSeries { return r.accel }

// Velocity returns the velocity series (given or derived so far), or nil
func (r *Record) Velocity() series.TimeSeries { return r.vel }

// Displacement returns the displacement series (given or derived so far), or nil
func (r *Record) Displacement() series.TimeSeries { return r.disp }

// Integrator returns the integrator, or nil if none has been needed yet
func (r *Record) Integrator() integrator.Integrator { return r.integrator }

// IntegrationStep returns the grid spacing used for integration
func (r *Record) IntegrationStep() float64 { return r.step }

// ScaleFactor returns the factor applied to every returned value
func (r *Record) ScaleFactor() float64 { return r.factor }
