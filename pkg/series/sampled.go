package series

import (
	"log/slog"
	"math"
)

// Sampled is a TimeSeries that linearly interpolates samples taken at a
// uniform step, starting at a fixed start time.
//
// Sample i is evaluated at StartTime()+i*StepIncrement(). A series with zero
// samples is valid and reports 0 for every query.
type Sampled struct {
	tag      int
	samples  []float64
	step     float64
	scale    float64
	start    float64
	holdLast bool
	logger   *slog.Logger
}

// Option configures a Sampled series
type Option func(*options)

type options struct {
	step        float64
	scale       float64
	start       float64
	holdLast    bool
	prependZero bool
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		step:  1.0,
		scale: 1.0,
	}
}

// WithStepIncrement sets the time between consecutive samples
func WithStepIncrement(step float64) Option {
	return func(o *options) { o.step = step }
}

// WithScaleFactor sets the factor applied to every returned value
func WithScaleFactor(scale float64) Option {
	return func(o *options) { o.scale = scale }
}

// WithStartTime sets the time of the first sample
func WithStartTime(start float64) Option {
	return func(o *options) { o.start = start }
}

// WithHoldLast makes queries past the last sample return the last value
// instead of zero.
func WithHoldLast(hold bool) Option {
	return func(o *options) { o.holdLast = hold }
}

// WithPrependZero inserts a synthetic zero sample ahead of the data so the
// motion starts at rest.
func WithPrependZero(prepend bool) Option {
	return func(o *options) { o.prependZero = prepend }
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewSampled creates a series from an ordered list of samples. The samples are
// copied.
func NewSampled(tag int, samples []float64, opts ...Option) *Sampled {
	o := buildOptions(opts)

	var data []float64
	if len(samples) > 0 {
		offset := 0
		if o.prependZero {
			offset = 1
		}
		data = make([]float64, len(samples)+offset)
		copy(data[offset:], samples)
	}

	s := newSampled(tag, data, o)
	if len(data) == 0 {
		s.logger.Warn("sampled series constructed without samples", "tag", tag)
	}
	return s
}

func newSampled(tag int, data []float64, o options) *Sampled {
	s := &Sampled{
		tag:      tag,
		samples:  data,
		step:     o.step,
		scale:    o.scale,
		start:    o.start,
		holdLast: o.holdLast,
		logger:   o.logger.With("component", "series", "tag", tag),
	}

	if !(s.step > 0) || math.IsInf(s.step, 0) {
		s.logger.Warn("invalid step increment, using default", "step", s.step, "default", defaultOptions().step)
		s.step = defaultOptions().step
	}
	return s
}

// Tag implements TimeSeries.Tag
func (s *Sampled) Tag() int {
	return s.tag
}

// FactorAt implements TimeSeries.FactorAt
func (s *Sampled) FactorAt(t float64) float64 {
	size := len(s.samples)
	if t < s.start || size == 0 {
		return 0.0
	}

	// floor(idx)+1 >= size; the negated form also catches NaN and Inf
	idx := (t - s.start) / s.step
	if !(idx < float64(size-1)) {
		if !s.holdLast {
			return 0.0
		}
		return s.scale * s.samples[size-1]
	}

	i0 := int(math.Floor(idx))
	v0 := s.samples[i0]
	v1 := s.samples[i0+1]
	return s.scale * (v0 + (v1-v0)*(idx-float64(i0)))
}

// Duration implements TimeSeries.Duration
func (s *Sampled) Duration() float64 {
	if len(s.samples) == 0 {
		s.logger.Warn("duration requested on empty series")
	}
	return s.start + float64(len(s.samples))*s.step
}

// PeakFactor implements TimeSeries.PeakFactor
func (s *Sampled) PeakFactor() float64 {
	if len(s.samples) == 0 {
		s.logger.Warn("peak factor requested on empty series")
		return 0.0
	}

	peak := 0.0
	for _, v := range s.samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak * s.scale
}

// StepIncrementAt implements TimeSeries.StepIncrementAt. The spacing is
// uniform so t is ignored.
func (s *Sampled) StepIncrementAt(float64) float64 {
	return s.step
}

// Copy implements TimeSeries.Copy
func (s *Sampled) Copy() TimeSeries {
	var data []float64
	if len(s.samples) > 0 {
		data = append([]float64(nil), s.samples...)
	}
	return &Sampled{
		tag:      s.tag,
		samples:  data,
		step:     s.step,
		scale:    s.scale,
		start:    s.start,
		holdLast: s.holdLast,
		logger:   s.logger,
	}
}

// Len returns the number of samples
func (s *Sampled) Len() int {
	return len(s.samples)
}

// Samples returns the backing sample slice. It is not copied; callers that
// modify it change the series.
func (s *Sampled) Samples() []float64 {
	return s.samples
}

// StepIncrement returns the sample spacing
func (s *Sampled) StepIncrement() float64 {
	return s.step
}

// ScaleFactor returns the factor applied to every returned value
func (s *Sampled) ScaleFactor() float64 {
	return s.scale
}

// StartTime returns the time of the first sample
func (s *Sampled) StartTime() float64 {
	return s.start
}

// HoldLast reports whether the last sample is held past the end
func (s *Sampled) HoldLast() bool {
	return s.holdLast
}
