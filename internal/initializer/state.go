package initializer

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the initial navigation state estimated from a still window,
// ready to seed a downstream filter. Velocity and position are zero by
// construction: the global frame is anchored at the initialization point.
type State struct {
	Timestamp   float64     `json:"timestamp"`   // newest sample in the window, seconds
	Orientation quat.Number `json:"orientation"` // unit quaternion, global→body
	GyroBias    r3.Vec      `json:"gyro_bias"`   // rad/s
	Velocity    r3.Vec      `json:"velocity"`    // m/s, global frame
	AccelBias   r3.Vec      `json:"accel_bias"`  // m/s², body frame
	Position    r3.Vec      `json:"position"`    // m, global frame
}

// RollPitchYaw returns the ZYX Euler factorization of the orientation in
// radians. Yaw is unobservable from gravity alone and will be zero up to
// numerical noise; it is included for display surfaces.
func (s State) RollPitchYaw() (roll, pitch, yaw float64) {
	q := s.Orientation
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sp := 2 * (w*y - z*x)
	sp = math.Max(-1, math.Min(1, sp))
	pitch = math.Asin(sp)

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// Status is a snapshot of the initializer's readiness, for monitoring.
type Status struct {
	Samples        int     `json:"samples"`        // samples currently in the window
	Span           float64 `json:"span"`           // seconds covered by the window
	Excitation     float64 `json:"excitation"`     // acceleration variance metric
	Dropped        int     `json:"dropped"`        // out-of-order samples rejected
	Classification string  `json:"classification"` // "not-ready" | "excited" | "still"
}
