package integrator

import "github.com/vjranagit/groundmotion/pkg/series"

// Trapezoidal integrates with the composite trapezoidal rule. It is the
// default used by a ground motion record when none is configured.
type Trapezoidal struct{}

// Integrate implements Integrator.Integrate
func (Trapezoidal) Integrate(s series.TimeSeries, step float64) (series.TimeSeries, error) {
	f, err := sampleGrid(s, step)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(f))
	for i := 1; i < len(f); i++ {
		out[i] = out[i-1] + 0.5*step*(f[i-1]+f[i])
	}

	return integrated(s, out, step), nil
}
