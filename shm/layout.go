// Package shm reads the accelerometer ring buffer that the Apple Silicon
// sensord daemon publishes in POSIX shared memory.
package shm

import "encoding/binary"

// Ring layout written by sensord.
const (
	RingCap   = 8000
	RingEntry = 12 // 3x int32: x, y, z
	SHMHeader = 16 // [0..3] write_idx u32, [4..11] total u64, [12..15] restarts u32
	SHMSize   = SHMHeader + RingCap*RingEntry

	AccelScale = 65536.0 // Q16 raw -> g
	NameAccel  = "vib_detect_shm"

	// SampleRate is the accelerometer rate after sensord decimation, in Hz.
	SampleRate = 100
)

// Sample holds one accelerometer reading in g.
type Sample struct {
	X, Y, Z float64
}

// Total returns the number of samples ever written to the ring in buf.
func Total(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf[4:12])
}

// Restarts returns the sensord restart counter.
func Restarts(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[12:16])
}

// Decode returns the samples written since lastTotal, oldest first, and the
// new total. When the writer has lapped the reader only the newest RingCap
// samples are returned.
func Decode(buf []byte, lastTotal uint64) ([]Sample, uint64) {
	total := Total(buf)
	if total <= lastTotal {
		return nil, total
	}
	n := total - lastTotal
	if n > RingCap {
		n = RingCap
	}

	idx := uint64(binary.LittleEndian.Uint32(buf[0:4]))
	start := (idx + RingCap - n) % RingCap
	out := make([]Sample, n)
	for i := range out {
		off := SHMHeader + int((start+uint64(i))%RingCap)*RingEntry
		out[i] = Sample{
			X: float64(int32(binary.LittleEndian.Uint32(buf[off:]))) / AccelScale,
			Y: float64(int32(binary.LittleEndian.Uint32(buf[off+4:]))) / AccelScale,
			Z: float64(int32(binary.LittleEndian.Uint32(buf[off+8:]))) / AccelScale,
		}
	}
	return out, total
}

// Encode appends a raw Q16 sample to the ring in buf, the way sensord does.
// It is used to build fixtures.
func Encode(buf []byte, x, y, z int32) {
	idx := binary.LittleEndian.Uint32(buf[0:4])
	off := SHMHeader + int(idx)*RingEntry

	binary.LittleEndian.PutUint32(buf[off:], uint32(x))
	binary.LittleEndian.PutUint32(buf[off+4:], uint32(y))
	binary.LittleEndian.PutUint32(buf[off+8:], uint32(z))

	binary.LittleEndian.PutUint32(buf[0:4], (idx+1)%RingCap)
	binary.LittleEndian.PutUint64(buf[4:12], Total(buf)+1)
}
