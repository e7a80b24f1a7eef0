package detector

import "gonum.org/v1/gonum/floats"

// RingFloat is a fixed-capacity ring buffer for float64 values.
type RingFloat struct {
	data []float64
	pos  int
	full bool
	cap  int
}

// NewRingFloat creates a RingFloat with the given capacity.
// Capacities below one are raised to one.
func NewRingFloat(cap int) *RingFloat {
	if cap < 1 {
		cap = 1
	}
	return &RingFloat{
		data: make([]float64, cap),
		cap:  cap,
	}
}

// Push adds a value, overwriting the oldest one once the buffer is full.
func (r *RingFloat) Push(v float64) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= r.cap {
		r.pos = 0
		r.full = true
	}
}

// Len returns the number of elements in the buffer.
func (r *RingFloat) Len() int {
	if r.full {
		return r.cap
	}
	return r.pos
}

// Mean returns the arithmetic mean of the buffered values, or 0 when empty.
// It is recomputed from the live window on every call, so a NaN stops
// affecting the result once it has been evicted.
func (r *RingFloat) Mean() float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	return floats.Sum(r.data[:n]) / float64(n)
}
