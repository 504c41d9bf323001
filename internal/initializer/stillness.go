package initializer

import (
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/inertial_initializer/internal/imu"
)

// Classification is the verdict of the stillness test over the current window.
type Classification int

const (
	// NotReady means the window does not yet span the configured length.
	NotReady Classification = iota
	// Excited means the acceleration variance exceeds the configured
	// threshold: the platform is moving or vibrating and the stand-still
	// assumption does not hold.
	Excited
	// Still means the window is full and quiet enough to initialize from.
	Still
)

func (c Classification) String() string {
	switch c {
	case NotReady:
		return "not-ready"
	case Excited:
		return "excited"
	case Still:
		return "still"
	}
	return "unknown"
}

// excitation measures how much the accelerometer moved around its mean over
// the window. The metric is the trace of the sample covariance of the
// acceleration vectors, i.e. the sum of the three per-axis sample variances.
// Gyro variance deliberately does not contribute: on a still platform the
// gyro reads its bias regardless, while any real motion or vibration shows
// up in the accelerometer.
func excitation(samples []imu.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Accel.X
		ys[i] = s.Accel.Y
		zs[i] = s.Accel.Z
	}
	return stat.Variance(xs, nil) + stat.Variance(ys, nil) + stat.Variance(zs, nil)
}

// classify applies the stand-still gate: the window must cover at least
// length seconds and its excitation must not exceed threshold.
func classify(span, length, exc, threshold float64) Classification {
	if span < length {
		return NotReady
	}
	if exc > threshold {
		return Excited
	}
	return Still
}
