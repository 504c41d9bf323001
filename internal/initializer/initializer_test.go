package initializer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var gravityUp = r3.Vec{Z: 9.81}

func newTestInitializer(t *testing.T) *Initializer {
	t.Helper()
	ini, err := New(gravityUp, 1.0, 1e-2)
	require.NoError(t, err)
	return ini
}

// feedConstant feeds n samples with fixed readings at dt spacing, starting
// at t=dt so the window reliably covers n*dt seconds.
func feedConstant(ini *Initializer, n int, dt float64, gyro, accel r3.Vec) {
	for i := 1; i <= n; i++ {
		ini.Feed(float64(i)*dt, gyro, accel)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(gravityUp, 0, 1e-2)
	assert.Error(t, err, "zero window length")

	_, err = New(gravityUp, -1, 1e-2)
	assert.Error(t, err, "negative window length")

	_, err = New(gravityUp, 1.0, 0)
	assert.Error(t, err, "zero threshold")

	_, err = New(gravityUp, 1.0, -1e-3)
	assert.Error(t, err, "negative threshold")

	_, err = New(r3.Vec{}, 1.0, 1e-2)
	assert.Error(t, err, "zero gravity")
}

func TestInitializeFailsOnShortWindow(t *testing.T) {
	ini := newTestInitializer(t)

	_, err := ini.Initialize()
	require.ErrorIs(t, err, ErrWindowTooShort, "empty buffer")

	// Half a window of perfectly quiet samples: still not ready, no matter
	// how low the variance is.
	feedConstant(ini, 50, 0.01, r3.Vec{}, gravityUp)
	_, err = ini.Initialize()
	require.ErrorIs(t, err, ErrWindowTooShort)
}

func TestInitializeFailsOnExcessiveMotion(t *testing.T) {
	ini := newTestInitializer(t)

	// Full window with the accelerometer bouncing along z: variance well
	// above the 1e-2 gate.
	for i := 1; i <= 150; i++ {
		az := 9.0
		if i%2 == 0 {
			az = 10.6
		}
		ini.Feed(float64(i)*0.01, r3.Vec{}, r3.Vec{Z: az})
	}

	st := ini.Status()
	assert.Equal(t, Excited.String(), st.Classification)
	assert.Greater(t, st.Excitation, 1e-2)

	_, err := ini.Initialize()
	require.ErrorIs(t, err, ErrExcessiveMotion)
}

func TestBiasRecoveryWhenStill(t *testing.T) {
	ini := newTestInitializer(t)

	omega := r3.Vec{X: 0.01, Y: -0.02, Z: 0.005}
	feedConstant(ini, 120, 0.01, omega, gravityUp)

	state, err := ini.Initialize()
	require.NoError(t, err)

	assert.InDelta(t, omega.X, state.GyroBias.X, 1e-12)
	assert.InDelta(t, omega.Y, state.GyroBias.Y, 1e-12)
	assert.InDelta(t, omega.Z, state.GyroBias.Z, 1e-12)

	assert.Equal(t, r3.Vec{}, state.Velocity)
	assert.Equal(t, r3.Vec{}, state.Position)
	assert.InDelta(t, 1.20, state.Timestamp, 1e-12, "timestamp of newest sample")
}

// TestStandStillScenario is the reference scenario: a level, motionless
// platform in a z-up frame must initialize to the identity orientation with
// near-zero biases.
func TestStandStillScenario(t *testing.T) {
	ini := newTestInitializer(t)
	feedConstant(ini, 101, 0.01, r3.Vec{}, gravityUp)

	state, err := ini.Initialize()
	require.NoError(t, err)

	assert.InDelta(t, 1, state.Orientation.Real, 1e-9)
	assert.InDelta(t, 0, state.Orientation.Imag, 1e-9)
	assert.InDelta(t, 0, state.Orientation.Jmag, 1e-9)
	assert.InDelta(t, 0, state.Orientation.Kmag, 1e-9)

	for _, v := range []r3.Vec{state.GyroBias, state.AccelBias, state.Velocity, state.Position} {
		assert.InDelta(t, 0, r3.Norm(v), 1e-9)
	}
}

func TestGravityAlignmentDirections(t *testing.T) {
	dirs := []r3.Vec{
		{Z: 1},                                  // level
		{X: 1, Y: 1, Z: 1},                      // tilted into a corner
		{X: 1},                                  // on its side
		{X: -0.3, Y: 0.8, Z: 0.52},              // arbitrary attitude
		{X: 1e-4, Y: -1e-4, Z: -1},              // almost upside down
		{Z: -1},                                 // exactly upside down (anti-parallel)
		{X: math.Sqrt(0.5), Z: -math.Sqrt(0.5)}, // halfway over
	}

	for _, d := range dirs {
		ini := newTestInitializer(t)
		meanAccel := r3.Scale(9.81, r3.Unit(d))
		feedConstant(ini, 120, 0.01, r3.Vec{}, meanAccel)

		state, err := ini.Initialize()
		require.NoError(t, err, "direction %+v", d)

		q := state.Orientation
		assert.InDelta(t, 1, quat.Abs(q), 1e-12, "unit quaternion for %+v", d)

		// The estimated orientation must map the configured gravity
		// reaction onto the measured mean acceleration.
		rotated := r3.Rotation(q).Rotate(gravityUp)
		assert.InDelta(t, meanAccel.X, rotated.X, 1e-9, "direction %+v", d)
		assert.InDelta(t, meanAccel.Y, rotated.Y, 1e-9, "direction %+v", d)
		assert.InDelta(t, meanAccel.Z, rotated.Z, 1e-9, "direction %+v", d)

		// With an exact gravity-magnitude measurement the residual accel
		// bias is zero.
		assert.InDelta(t, 0, r3.Norm(state.AccelBias), 1e-9, "direction %+v", d)
	}
}

func TestAccelBiasResidual(t *testing.T) {
	ini := newTestInitializer(t)

	// Level platform with a small accelerometer offset: the alignment
	// absorbs the in-plane part of the offset into a tiny tilt, but the
	// predicted-vs-measured residual must match meanAccel - R·g exactly.
	meas := r3.Vec{X: 0.05, Y: -0.03, Z: 9.83}
	feedConstant(ini, 120, 0.01, r3.Vec{}, meas)

	state, err := ini.Initialize()
	require.NoError(t, err)

	pred := r3.Rotation(state.Orientation).Rotate(gravityUp)
	resid := r3.Sub(meas, pred)
	assert.InDelta(t, resid.X, state.AccelBias.X, 1e-12)
	assert.InDelta(t, resid.Y, state.AccelBias.Y, 1e-12)
	assert.InDelta(t, resid.Z, state.AccelBias.Z, 1e-12)

	// Magnitude excess over gravity shows up as bias along the measured
	// direction.
	assert.InDelta(t, r3.Norm(meas)-9.81, r3.Norm(state.AccelBias), 1e-9)
}

func TestOutOfOrderSamplesDropped(t *testing.T) {
	ini := newTestInitializer(t)
	feedConstant(ini, 120, 0.01, r3.Vec{}, gravityUp)

	before, err := ini.Initialize()
	require.NoError(t, err)
	stBefore := ini.Status()

	// Equal and older timestamps must both be rejected without touching
	// the window.
	ini.Feed(1.20, r3.Vec{X: 99}, r3.Vec{X: 99})
	ini.Feed(0.50, r3.Vec{X: 99}, r3.Vec{X: 99})

	stAfter := ini.Status()
	assert.Equal(t, stBefore.Samples, stAfter.Samples)
	assert.Equal(t, stBefore.Span, stAfter.Span)
	assert.Equal(t, stBefore.Dropped+2, stAfter.Dropped)

	after, err := ini.Initialize()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ini := newTestInitializer(t)
	feedConstant(ini, 120, 0.01, r3.Vec{X: 0.004, Z: -0.002}, r3.Vec{X: 0.1, Z: 9.8})

	first, err := ini.Initialize()
	require.NoError(t, err)
	second, err := ini.Initialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReinitializeAfterMoreSamples(t *testing.T) {
	ini := newTestInitializer(t)

	omega1 := r3.Vec{Z: 0.01}
	feedConstant(ini, 120, 0.01, omega1, gravityUp)
	first, err := ini.Initialize()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, first.GyroBias.Z, 1e-12)

	// Keep feeding with a different bias until the old samples have been
	// evicted; a fresh initialization must reflect only the live window.
	omega2 := r3.Vec{Z: 0.03}
	for i := 121; i <= 260; i++ {
		ini.Feed(float64(i)*0.01, omega2, gravityUp)
	}
	second, err := ini.Initialize()
	require.NoError(t, err)
	assert.InDelta(t, 0.03, second.GyroBias.Z, 1e-12)
	assert.Greater(t, second.Timestamp, first.Timestamp)
}

func TestRollPitchYawOfTiltedState(t *testing.T) {
	ini := newTestInitializer(t)

	// 30° pitch forward: gravity reaction tips into +x in the body frame.
	meas := r3.Vec{X: 9.81 * math.Sin(math.Pi/6), Z: 9.81 * math.Cos(math.Pi / 6)}
	feedConstant(ini, 120, 0.01, r3.Vec{}, meas)

	state, err := ini.Initialize()
	require.NoError(t, err)

	_, pitch, _ := state.RollPitchYaw()
	assert.InDelta(t, math.Pi/6, pitch, 1e-9)
}
