package series

// SampledState is the full persistent state of a Sampled series
type SampledState struct {
	Tag           int       `json:"tag"`
	StepIncrement float64   `json:"step_increment"`
	ScaleFactor   float64   `json:"scale_factor"`
	StartTime     float64   `json:"start_time"`
	HoldLast      bool      `json:"hold_last"`
	Samples       []float64 `json:"samples"`
}

// State returns a snapshot of the series. Samples are copied.
func (s *Sampled) State() SampledState {
	return SampledState{
		Tag:           s.tag,
		StepIncrement: s.step,
		ScaleFactor:   s.scale,
		StartTime:     s.start,
		HoldLast:      s.holdLast,
		Samples:       append([]float64(nil), s.samples...),
	}
}

// FromState rebuilds a series from a snapshot. Only WithLogger is honoured
// among opts; every other field comes from the state.
func FromState(state SampledState, opts ...Option) *Sampled {
	o := buildOptions(opts)
	o.step = state.StepIncrement
	o.scale = state.ScaleFactor
	o.start = state.StartTime
	o.holdLast = state.HoldLast

	var data []float64
	if len(state.Samples) > 0 {
		data = append([]float64(nil), state.Samples...)
	}
	return newSampled(state.Tag, data, o)
}
