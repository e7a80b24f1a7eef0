//go:build darwin

package shm

import (
	"fmt"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// Reader follows the accelerometer ring read-only.
type Reader struct {
	buf  []byte
	fd   int
	last uint64
}

// OpenAccel opens the accelerometer ring. Samples already in the ring when
// it is opened are skipped.
func OpenAccel() (*Reader, error) {
	fd, err := shmOpen(NameAccel, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	buf, err := unix.Mmap(fd, 0, SHMSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", NameAccel, err)
	}
	return &Reader{buf: buf, fd: fd, last: Total(buf)}, nil
}

// ReadNew returns the samples written since the previous call.
func (r *Reader) ReadNew() []Sample {
	var samples []Sample
	samples, r.last = Decode(r.buf, r.last)
	return samples
}

// Restarts returns the sensord restart counter.
func (r *Reader) Restarts() uint32 {
	return Restarts(r.buf)
}

// Close unmaps and closes the shared memory.
func (r *Reader) Close() error {
	if err := unix.Munmap(r.buf); err != nil {
		return err
	}
	return unix.Close(r.fd)
}

var fnShmOpen func(name *byte, oflag int32, mode uint16) int32

func shmOpen(name string, flags int, mode uint32) (int, error) {
	if fnShmOpen == nil {
		lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY)
		if err != nil {
			return -1, fmt.Errorf("dlopen libSystem: %w", err)
		}
		purego.RegisterLibFunc(&fnShmOpen, lib, "shm_open")
	}

	// shm_open names must start with /
	b := append([]byte("/"+name), 0)
	fd := fnShmOpen(&b[0], int32(flags), uint16(mode))
	if fd < 0 {
		return -1, fmt.Errorf("shm_open(%q) returned %d", "/"+name, fd)
	}
	return int(fd), nil
}
