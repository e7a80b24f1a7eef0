package source

// batchStamper timestamps samples that arrive in batches at a nominal rate
// without a clock of their own. Stamps never go backwards: each batch
// continues from the previous one, and is pulled forward to end at now when
// the nominal rate has fallen behind the wall clock.
type batchStamper struct {
	interval int64 // ms between samples
	last     int64
	started  bool
}

func newBatchStamper(rateHz int) *batchStamper {
	interval := int64(1)
	if rateHz > 0 && rateHz <= 1000 {
		interval = int64(1000 / rateHz)
	}
	return &batchStamper{interval: interval}
}

// stamp returns timestamps for a batch of n samples read at nowMs.
func (b *batchStamper) stamp(nowMs int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	first := nowMs - int64(n-1)*b.interval
	if b.started && first < b.last+b.interval {
		first = b.last + b.interval
	}

	out := make([]int64, n)
	for i := range out {
		out[i] = first + int64(i)*b.interval
	}
	b.last = out[n-1]
	b.started = true
	return out
}
