package collector

import "time"

// latencyRing is a bounded buffer of recent durations. Once full, each append
// evicts the oldest entry. Percentiles are computed over the window only,
// never over process lifetime.
type latencyRing struct {
	buf  []time.Duration
	next int
	full bool
}

func newLatencyRing(capacity int) *latencyRing {
	return &latencyRing{buf: make([]time.Duration, capacity)}
}

func (r *latencyRing) append(d time.Duration) {
	r.buf[r.next] = d
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *latencyRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// snapshot returns a copy of the window contents in unspecified order.
func (r *latencyRing) snapshot() []time.Duration {
	out := make([]time.Duration, r.len())
	copy(out, r.buf[:r.len()])
	return out
}

// sampleRing is a bounded buffer of gauge samples (CPU percent, memory MB).
type sampleRing struct {
	buf  []float64
	next int
	full bool
}

func newSampleRing(capacity int) *sampleRing {
	return &sampleRing{buf: make([]float64, capacity)}
}

func (r *sampleRing) append(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *sampleRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// mean returns the arithmetic mean of the window, or 0 when empty.
func (r *sampleRing) mean() float64 {
	n := r.len()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.buf[:n] {
		sum += v
	}
	return sum / float64(n)
}
