package motion

// velocity reports whether a velocity series is available, deriving it from
// acceleration on first use.
func (r *Record) velocity() bool {
	if r.vel != nil {
		return true
	}
	if r.accel == nil {
		return false
	}

	r.logger.Warn("integration required to get ground velocities from ground accelerations")
	r.vel = r.integrate(r.accel)
	return r.vel != nil
}

// displacement reports whether a displacement series is available, deriving
// it from velocity (and velocity from acceleration) on first use.
func (r *Record) displacement() bool {
	if r.disp != nil {
		return true
	}

	switch {
	case r.vel != nil:
		r.logger.Warn("integration required to get ground displacements from ground velocities")
	case r.accel != nil:
		r.logger.Warn("integration required to get ground displacements via ground velocities from ground accelerations")
	}
	if !r.velocity() {
		return false
	}

	r.disp = r.integrate(r.vel)
	return r.disp != nil
}

// AccelerationAt returns the scaled ground acceleration at time t. It is
// never derived from velocity or displacement.
func (r *Record) AccelerationAt(t float64) float64 {
	if t < 0.0 || r.accel == nil {
		return 0.0
	}
	return r.factor * r.accel.FactorAt(t)
}

// VelocityAt returns the scaled ground velocity at time t
func (r *Record) VelocityAt(t float64) float64 {
	if t < 0.0 || !r.velocity() {
		return 0.0
	}
	return r.factor * r.vel.FactorAt(t)
}

// DisplacementAt returns the scaled ground displacement at time t
func (r *Record) DisplacementAt(t float64) float64 {
	if t < 0.0 || !r.displacement() {
		return 0.0
	}
	return r.factor * r.disp.FactorAt(t)
}

// PeakAcceleration returns the scaled peak ground acceleration
func (r *Record) PeakAcceleration() float64 {
	if r.accel == nil {
		return 0.0
	}
	return r.factor * r.accel.PeakFactor()
}

// PeakVelocity returns the scaled peak ground velocity
func (r *Record) PeakVelocity() float64 {
	if !r.velocity() {
		return 0.0
	}
	return r.factor * r.vel.PeakFactor()
}

// PeakDisplacement returns the scaled peak ground displacement
func (r *Record) PeakDisplacement() float64 {
	if !r.displacement() {
		return 0.0
	}
	return r.factor * r.disp.PeakFactor()
}

// DispVelAccelAt returns displacement, velocity and acceleration at time t,
// in that order.
//
// The returned slice is backed by a buffer owned by the record and is
// overwritten by the next call. Copy it to keep the values.
func (r *Record) DispVelAccelAt(t float64) []float64 {
	switch {
	case t < 0.0:
		r.data = [3]float64{}
	case r.accel != nil && r.vel != nil && r.disp != nil:
		r.data[0] = r.factor * r.disp.FactorAt(t)
		r.data[1] = r.factor * r.vel.FactorAt(t)
		r.data[2] = r.factor * r.accel.FactorAt(t)
	default:
		r.data[2] = r.AccelerationAt(t)
		r.data[1] = r.VelocityAt(t)
		r.data[0] = r.DisplacementAt(t)
	}
	return r.data[:]
}

// Duration returns the duration of the acceleration series, or 0 without
// one. Velocity and displacement are not consulted even when they are the
// only data present.
func (r *Record) Duration() float64 {
	if r.accel == nil {
		return 0.0
	}
	return r.accel.Duration()
}
