// Package initializer performs stand-still inertial initialization for a
// visual-inertial navigation pipeline: it buffers a trailing window of raw
// IMU samples, gates on how quiet the window is, and computes a closed-form
// initial orientation, biases, velocity and position to seed a downstream
// filter before any visual measurements are fused.
//
// The estimation rests on the stand-still assumption: during the window the
// true angular velocity and velocity are zero, so the gyro mean is entirely
// bias and the mean specific force is entirely gravity plus accel bias.
package initializer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_initializer/internal/imu"
)

var (
	// ErrWindowTooShort reports that the buffered samples do not yet cover
	// the configured window length. Keep feeding and retry.
	ErrWindowTooShort = errors.New("initializer: window shorter than configured length")

	// ErrExcessiveMotion reports that the acceleration variance over the
	// window exceeds the excitation threshold, so the stand-still
	// assumption does not hold. Keep feeding and retry once the platform
	// settles.
	ErrExcessiveMotion = errors.New("initializer: excessive motion in window")
)

// Initializer buffers IMU samples and produces an initial state once the
// platform has been still for a full window.
//
// It is not safe for concurrent use: if Feed runs on a sensor callback
// goroutine and Initialize is polled from another, the caller must serialize
// access with a single mutex around both.
type Initializer struct {
	gravity   r3.Vec  // specific force an ideal accelerometer reports at rest, global frame
	threshold float64 // acceleration variance gate

	win window
}

// New validates the configuration and returns a fresh Initializer.
// The gravity vector is expressed in the global frame with magnitude
// ≈ 9.81; for a z-up frame that is (0, 0, 9.81). windowLength is the
// stillness window in seconds, exciteThreshold the acceleration variance
// above which the platform counts as moving.
func New(gravity r3.Vec, windowLength, exciteThreshold float64) (*Initializer, error) {
	if windowLength <= 0 {
		return nil, fmt.Errorf("initializer: window length must be positive, got %g", windowLength)
	}
	if exciteThreshold <= 0 {
		return nil, fmt.Errorf("initializer: excitation threshold must be positive, got %g", exciteThreshold)
	}
	if r3.Norm(gravity) == 0 {
		return nil, errors.New("initializer: gravity vector must be non-zero")
	}
	return &Initializer{
		gravity:   gravity,
		threshold: exciteThreshold,
		win:       window{length: windowLength},
	}, nil
}

// Feed appends one IMU reading to the window and evicts expired samples.
// A reading whose timestamp is not strictly greater than the newest stored
// one is dropped (counted in Status), never reordered.
func (ini *Initializer) Feed(timestamp float64, gyro, accel r3.Vec) {
	ini.win.push(imu.Sample{Timestamp: timestamp, Gyro: gyro, Accel: accel})
}

// FeedSample is Feed for callers that already hold an imu.Sample.
func (ini *Initializer) FeedSample(s imu.Sample) {
	ini.win.push(s)
}

// Status reports the current window and its stillness classification
// without attempting an initialization.
func (ini *Initializer) Status() Status {
	live := ini.win.live()
	span := ini.win.span()
	exc := excitation(live)
	return Status{
		Samples:        len(live),
		Span:           span,
		Excitation:     exc,
		Dropped:        ini.win.dropped,
		Classification: classify(span, ini.win.length, exc, ini.threshold).String(),
	}
}

// Initialize attempts a stand-still initialization over the current window.
// On failure it returns a zero State and ErrWindowTooShort or
// ErrExcessiveMotion; both are recoverable, the intended reaction is to keep
// feeding samples and retry. The result is a pure function of the window
// contents and the configuration, so repeated calls without intervening
// feeds return identical states. The Initializer stays usable afterwards:
// callers may keep feeding and re-initialize at any time.
func (ini *Initializer) Initialize() (State, error) {
	live := ini.win.live()
	span := ini.win.span()
	exc := excitation(live)

	switch classify(span, ini.win.length, exc, ini.threshold) {
	case NotReady:
		return State{}, fmt.Errorf("window spans %.3fs of %.3fs: %w", span, ini.win.length, ErrWindowTooShort)
	case Excited:
		return State{}, fmt.Errorf("acceleration variance %.4g above threshold %.4g: %w", exc, ini.threshold, ErrExcessiveMotion)
	}

	// Window means. Under stand-still the gyro mean is pure bias and the
	// accel mean is the body-frame gravity reaction plus accel bias.
	var gyroSum, accelSum r3.Vec
	for _, s := range live {
		gyroSum = r3.Add(gyroSum, s.Gyro)
		accelSum = r3.Add(accelSum, s.Accel)
	}
	n := float64(len(live))
	gyroBias := r3.Scale(1/n, gyroSum)
	meanAccel := r3.Scale(1/n, accelSum)

	// Align the configured gravity reaction with the measured mean: the
	// shortest-arc rotation taking the global gravity direction onto the
	// body-frame measurement is the global→body orientation. The accel
	// bias is small next to 9.81 m/s², so it perturbs the alignment far
	// less than it perturbs the residual below.
	q := gravityAlign(ini.gravity, meanAccel)

	// Residual between the measurement and the specific force predicted
	// from gravity alone under the estimated orientation.
	accelBias := r3.Sub(meanAccel, r3.Rotation(q).Rotate(ini.gravity))

	return State{
		Timestamp:   live[len(live)-1].Timestamp,
		Orientation: q,
		GyroBias:    gyroBias,
		Velocity:    r3.Vec{},
		AccelBias:   accelBias,
		Position:    r3.Vec{},
	}, nil
}

// antiparallelEps bounds how close to exactly opposite two unit vectors may
// be before the shortest-arc construction degenerates.
const antiparallelEps = 1e-12

// gravityAlign returns the unit quaternion rotating the global gravity
// direction onto the measured mean acceleration direction (shortest arc).
// Parallel inputs yield the identity. Exactly anti-parallel inputs have no
// unique shortest arc; the tie is broken deterministically with a 180°
// rotation about an axis orthogonal to gravity.
func gravityAlign(gravity, meanAccel r3.Vec) quat.Number {
	u := r3.Unit(gravity)
	v := r3.Unit(meanAccel)

	d := r3.Dot(u, v)
	if 1+d < antiparallelEps {
		axis := orthogonal(u)
		return quat.Number{Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
	}

	c := r3.Cross(u, v)
	q := quat.Number{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z}
	return quat.Scale(1/quat.Abs(q), q)
}

// orthogonal returns a unit vector orthogonal to u: the cross product of u
// with the global axis u is least aligned with (X, falling back to Y when
// u points mostly along X).
func orthogonal(u r3.Vec) r3.Vec {
	ref := r3.Vec{X: 1}
	if math.Abs(u.X) >= math.Abs(u.Y) && math.Abs(u.X) >= math.Abs(u.Z) {
		ref = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(u, ref))
}
