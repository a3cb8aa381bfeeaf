package integrator

import "github.com/vjranagit/groundmotion/pkg/series"

// Simpson integrates with the composite Simpson rule.
//
// Simpson panels span two intervals, so the running integral is built on two
// interleaved chains. Even grid points are pure composite Simpson from 0.
// Odd grid points start from a trapezoid over the first interval and add
// Simpson panels from there. Every grid point gets a value whether the total
// interval count is odd or even.
type Simpson struct{}

// Integrate implements Integrator.Integrate
func (Simpson) Integrate(s series.TimeSeries, step float64) (series.TimeSeries, error) {
	f, err := sampleGrid(s, step)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(f))
	if len(f) > 1 {
		out[1] = 0.5 * step * (f[0] + f[1])
	}
	for i := 2; i < len(f); i++ {
		out[i] = out[i-2] + step/3.0*(f[i-2]+4.0*f[i-1]+f[i])
	}

	return integrated(s, out, step), nil
}
