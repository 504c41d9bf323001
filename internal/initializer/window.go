package initializer

import (
	"github.com/relabs-tech/inertial_initializer/internal/imu"
)

// window is a time-bounded sliding buffer of IMU samples with strictly
// increasing timestamps. Appends are O(1) amortized; eviction is O(k) in
// the number of expired samples.
type window struct {
	length  float64 // seconds covered by the window
	samples []imu.Sample
	head    int // index of the oldest live sample in samples
	dropped int // out-of-order samples rejected so far
}

// push appends a sample and evicts expired ones. A sample whose timestamp
// is not strictly greater than the newest stored one is dropped, keeping
// the ordering invariant instead of corrupting it.
func (w *window) push(s imu.Sample) bool {
	if n := w.len(); n > 0 && s.Timestamp <= w.samples[len(w.samples)-1].Timestamp {
		w.dropped++
		return false
	}
	w.samples = append(w.samples, s)

	// Evict from the front, but keep one sample at or before the cutoff so
	// the retained span can actually reach the configured length. Without
	// the boundary sample an irregular rate would leave the span forever
	// short of length by a fraction of a period.
	cutoff := s.Timestamp - w.length
	for w.head+1 < len(w.samples) && w.samples[w.head+1].Timestamp <= cutoff {
		w.head++
	}

	// Compact once the dead prefix dominates, so memory stays bounded by
	// the live window rather than the total feed history.
	if w.head > len(w.samples)/2 {
		live := copy(w.samples, w.samples[w.head:])
		w.samples = w.samples[:live]
		w.head = 0
	}
	return true
}

// live returns the samples currently inside the window, oldest first.
// The slice aliases internal storage and is only valid until the next push.
func (w *window) live() []imu.Sample {
	return w.samples[w.head:]
}

func (w *window) len() int {
	return len(w.samples) - w.head
}

// span is the time covered by the window, zero when fewer than two samples.
func (w *window) span() float64 {
	if w.len() < 2 {
		return 0
	}
	return w.samples[len(w.samples)-1].Timestamp - w.samples[w.head].Timestamp
}
