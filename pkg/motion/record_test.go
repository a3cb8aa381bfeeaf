package motion

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/series"
)

// countingIntegrator wraps an integrator, counting calls and failing the
// first failFirst of them.
type countingIntegrator struct {
	inner     integrator.Integrator
	calls     int
	failFirst int
}

func (c *countingIntegrator) Integrate(s series.TimeSeries, step float64) (series.TimeSeries, error) {
	c.calls++
	if c.calls <= c.failFirst {
		return nil, errors.New("integration unavailable")
	}
	return c.inner.Integrate(s, step)
}

func constantAccel(value float64, n int) *series.Sampled {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = value
	}
	return series.NewSampled(1, samples, series.WithStepIncrement(1))
}

func quietLogger() (*slog.Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return slog.New(slog.NewTextHandler(buf, nil)), buf
}

func TestRecordConstantAcceleration(t *testing.T) {
	r := New(WithAcceleration(constantAccel(1.0, 10)), WithIntegrationStep(1))

	assert.InDelta(t, 1.0, r.AccelerationAt(5), 1e-12)
	assert.InDelta(t, 5.0, r.VelocityAt(5), 1e-9)
	assert.InDelta(t, 12.5, r.DisplacementAt(5), 1e-9)
	assert.Equal(t, integrator.NameTrapezoidal, integrator.Name(r.Integrator()))
}

func TestRecordNegativeTime(t *testing.T) {
	records := map[string]*Record{
		"empty":        New(),
		"acceleration": New(WithAcceleration(constantAccel(3, 5))),
		"velocity":     New(WithVelocity(constantAccel(3, 5))),
		"displacement": New(WithDisplacement(constantAccel(3, 5))),
	}

	for name, r := range records {
		t.Run(name, func(t *testing.T) {
			for _, tm := range []float64{-0.001, -1, -1e9} {
				assert.Equal(t, 0.0, r.AccelerationAt(tm))
				assert.Equal(t, 0.0, r.VelocityAt(tm))
				assert.Equal(t, 0.0, r.DisplacementAt(tm))
				assert.Equal(t, []float64{0, 0, 0}, r.DispVelAccelAt(tm))
			}
		})
	}
}

func TestRecordEmpty(t *testing.T) {
	r := New()

	assert.Equal(t, 0.0, r.AccelerationAt(1))
	assert.Equal(t, 0.0, r.VelocityAt(1))
	assert.Equal(t, 0.0, r.DisplacementAt(1))
	assert.Equal(t, 0.0, r.PeakAcceleration())
	assert.Equal(t, 0.0, r.PeakVelocity())
	assert.Equal(t, 0.0, r.PeakDisplacement())
	assert.Equal(t, 0.0, r.Duration())
	assert.Nil(t, r.Integrator())
}

func TestRecordDerivationMatchesIntegrator(t *testing.T) {
	samples := []float64{0, 0.2, 0.5, -0.3, -0.6, 0.1, 0.4, 0, -0.2, 0}
	step := 0.25

	for _, in := range []integrator.Integrator{integrator.Trapezoidal{}, integrator.Simpson{}} {
		accel := series.NewSampled(1, samples, series.WithStepIncrement(0.5))
		r := New(WithAcceleration(accel), WithIntegrator(in), WithIntegrationStep(step))

		vel, err := in.Integrate(accel, step)
		require.NoError(t, err)
		disp, err := in.Integrate(vel, step)
		require.NoError(t, err)

		for _, tm := range []float64{0, 0.3, 1.25, 2.0, 3.7, 4.9, 6} {
			assert.InDelta(t, vel.FactorAt(tm), r.VelocityAt(tm), 1e-12)
			assert.InDelta(t, disp.FactorAt(tm), r.DisplacementAt(tm), 1e-12)
		}
	}
}

func TestRecordScaleFactor(t *testing.T) {
	accel := series.NewSampled(1, []float64{0, 2, -4, 1}, series.WithStepIncrement(1))
	r := New(WithAcceleration(accel), WithScaleFactor(9.81))

	assert.InDelta(t, 9.81*-1, r.AccelerationAt(1.5), 1e-12)
	assert.InDelta(t, 9.81*4, r.PeakAcceleration(), 1e-12)
	assert.InDelta(t, 9.81*r.Velocity().FactorAt(2), r.VelocityAt(2), 1e-12)
	assert.InDelta(t, 9.81*r.Displacement().PeakFactor(), r.PeakDisplacement(), 1e-12)
}

func TestRecordEagerDerivation(t *testing.T) {
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}}
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(counter))

	assert.Equal(t, 2, counter.calls)
	assert.NotNil(t, r.Velocity())
	assert.NotNil(t, r.Displacement())
	assert.Equal(t, 1.0, r.IntegrationStep())

	r.VelocityAt(3)
	r.DisplacementAt(3)
	r.PeakVelocity()
	r.PeakDisplacement()
	r.DispVelAccelAt(2)
	assert.Equal(t, 2, counter.calls)
}

func TestRecordDoesNotDeriveGivenSeries(t *testing.T) {
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}}
	vel := constantAccel(2, 4)
	disp := constantAccel(3, 4)
	r := New(
		WithAcceleration(constantAccel(1, 4)),
		WithVelocity(vel),
		WithDisplacement(disp),
		WithIntegrator(counter),
	)

	assert.Equal(t, 0, counter.calls)
	assert.Same(t, vel, r.Velocity())
	assert.Same(t, disp, r.Displacement())
	assert.Equal(t, []float64{3, 2, 1}, r.DispVelAccelAt(1))
}

func TestRecordLazyVelocityIsMemoized(t *testing.T) {
	logger, buf := quietLogger()
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 1}
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(counter), WithLogger(logger))

	// eager velocity failed, so displacement was never attempted
	require.Equal(t, 1, counter.calls)
	assert.Nil(t, r.Velocity())
	assert.Nil(t, r.Displacement())
	assert.Contains(t, buf.String(), "failed to integrate")

	buf.Reset()
	first := r.VelocityAt(5)
	assert.Equal(t, 2, counter.calls)
	assert.Contains(t, buf.String(), "integration required")

	second := r.VelocityAt(5)
	assert.Equal(t, first, second)
	assert.InDelta(t, 5.0, second, 1e-12)
	r.PeakVelocity()
	assert.Equal(t, 2, counter.calls)
}

func TestRecordLazyDisplacementChain(t *testing.T) {
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 1}
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(counter), WithLogger(slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))))
	require.Equal(t, 1, counter.calls)

	// velocity then displacement in one query
	assert.InDelta(t, 12.5, r.DisplacementAt(5), 1e-12)
	assert.Equal(t, 3, counter.calls)

	assert.InDelta(t, 12.5, r.DisplacementAt(5), 1e-12)
	r.PeakDisplacement()
	r.VelocityAt(1)
	assert.Equal(t, 3, counter.calls)
}

func TestRecordLazyDisplacementFromVelocity(t *testing.T) {
	logger, buf := quietLogger()
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 1}
	r := New(WithVelocity(constantAccel(2, 10)), WithIntegrator(counter), WithLogger(logger))
	require.Nil(t, r.Displacement())

	// velocity reads 2 up to t=8 and 0 from t=9, so displacement tops out at 17
	assert.InDelta(t, 17.0, r.PeakDisplacement(), 1e-12)
	assert.Contains(t, buf.String(), "from ground velocities")
	assert.Equal(t, 2, counter.calls)

	// velocity only: acceleration is never derived backwards
	assert.Equal(t, 0.0, r.AccelerationAt(1))
	assert.Equal(t, 0.0, r.PeakAcceleration())
}

func TestRecordPersistentFailureDegradesToZero(t *testing.T) {
	logger, buf := quietLogger()
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 100}
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(counter), WithLogger(logger))

	assert.Equal(t, 0.0, r.VelocityAt(4))
	assert.Equal(t, 0.0, r.DisplacementAt(4))
	assert.Equal(t, 0.0, r.PeakVelocity())
	assert.Equal(t, 0.0, r.PeakDisplacement())
	assert.InDelta(t, 1.0, r.AccelerationAt(4), 1e-12)
	assert.Contains(t, buf.String(), "failed to integrate")
}

func TestRecordTinyIntegrationStepDegradesToZero(t *testing.T) {
	logger, buf := quietLogger()
	accel := series.NewSampled(1, []float64{0, 1, 2, 1, 0}, series.WithStepIncrement(0.01))

	var r *Record
	require.NotPanics(t, func() {
		r = New(WithAcceleration(accel), WithIntegrationStep(1e-300), WithLogger(logger))
	})

	assert.Nil(t, r.Velocity())
	assert.Nil(t, r.Displacement())
	assert.Equal(t, 0.0, r.VelocityAt(0.02))
	assert.Equal(t, 0.0, r.PeakDisplacement())
	dva := r.DispVelAccelAt(0.02)
	assert.Equal(t, 0.0, dva[0])
	assert.Equal(t, 0.0, dva[1])
	assert.InDelta(t, 2.0, dva[2], 1e-12)
	assert.Contains(t, buf.String(), integrator.ErrGridTooLarge.Error())
}

func TestRecordDisplacementOnly(t *testing.T) {
	logger, _ := quietLogger()
	// a record without acceleration or velocity has no step to fall back on
	r := New(WithDisplacement(constantAccel(1, 3)), WithLogger(logger))
	assert.Equal(t, 0.0, r.IntegrationStep())
	assert.InDelta(t, 1.0, r.DisplacementAt(1), 1e-12)
	assert.Equal(t, 0.0, r.VelocityAt(1))
}

func TestRecordDispVelAccelAtReusesBuffer(t *testing.T) {
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrationStep(1))

	first := r.DispVelAccelAt(2)
	assert.InDelta(t, 2.0, first[0], 1e-12)
	assert.InDelta(t, 2.0, first[1], 1e-12)
	assert.InDelta(t, 1.0, first[2], 1e-12)

	second := r.DispVelAccelAt(4)
	assert.InDelta(t, 8.0, second[0], 1e-12)

	// last write wins: the first result now shows the second call's values
	assert.Equal(t, second, first)
	assert.InDelta(t, 8.0, first[0], 1e-12)
	assert.InDelta(t, 4.0, first[1], 1e-12)
}

func TestRecordDispVelAccelAtPartialData(t *testing.T) {
	counter := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 1}
	logger, _ := quietLogger()
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(counter), WithLogger(logger))

	got := append([]float64(nil), r.DispVelAccelAt(4)...)
	assert.InDelta(t, 8.0, got[0], 1e-12)
	assert.InDelta(t, 4.0, got[1], 1e-12)
	assert.InDelta(t, 1.0, got[2], 1e-12)
	assert.Equal(t, 3, counter.calls)
}

// Duration only looks at acceleration; a velocity-only record reports 0.
func TestRecordDurationUsesAccelerationOnly(t *testing.T) {
	withAccel := New(WithAcceleration(series.NewSampled(1, make([]float64, 8), series.WithStepIncrement(0.5))))
	assert.Equal(t, 4.0, withAccel.Duration())

	velocityOnly := New(WithVelocity(constantAccel(1, 8)))
	assert.Equal(t, 0.0, velocityOnly.Duration())

	displacementOnly := New(WithDisplacement(constantAccel(1, 8)))
	assert.Equal(t, 0.0, displacementOnly.Duration())
}

func TestRecordCopy(t *testing.T) {
	accel := series.NewSampled(1, []float64{0, 1, 2, 1}, series.WithStepIncrement(1))
	r := New(WithAcceleration(accel), WithScaleFactor(2))
	cp := r.Copy()

	before := cp.DispVelAccelAt(1.5)
	want := append([]float64(nil), before...)

	accel.Samples()[1] = 50
	accel.Samples()[2] = 50

	assert.Equal(t, want, cp.DispVelAccelAt(1.5))
	assert.NotEqual(t, want[2], r.AccelerationAt(1.5))
	assert.Equal(t, r.ScaleFactor(), cp.ScaleFactor())
	assert.Equal(t, r.IntegrationStep(), cp.IntegrationStep())
}

func TestRecordSetIntegrator(t *testing.T) {
	logger, _ := quietLogger()
	failing := &countingIntegrator{inner: integrator.Trapezoidal{}, failFirst: 100}
	r := New(WithAcceleration(constantAccel(1, 10)), WithIntegrator(failing), WithLogger(logger))
	require.Nil(t, r.Velocity())

	r.SetIntegrator(integrator.Simpson{})
	assert.InDelta(t, 4.0, r.VelocityAt(4), 1e-12)
	assert.Equal(t, integrator.NameSimpson, integrator.Name(r.Integrator()))
}
