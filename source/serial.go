package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/detector"
)

// PortOptions describes the serial line settings of an IMU board.
type PortOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and fills in defaults (115200 8N1).
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options to the mode used to open the port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// Serial reads one sample per line from a serial port. See ParseLine for
// the accepted formats.
type Serial struct {
	path   string
	opts   PortOptions
	scale  float64
	logger *zap.Logger
	now    func() time.Time
}

// NewSerial creates a Serial source for the port at path.
func NewSerial(path string, opts PortOptions, scale float64, logger *zap.Logger) *Serial {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serial{path: path, opts: opts, scale: scale, logger: logger, now: time.Now}
}

// Stream opens the port and reads until ctx is cancelled or the port fails.
func (s *Serial) Stream(ctx context.Context, out chan<- detector.Sample) error {
	mode, err := s.opts.SerialMode()
	if err != nil {
		return err
	}
	port, err := serial.Open(s.path, mode)
	if err != nil {
		return fmt.Errorf("opening serial port %s: %w", s.path, err)
	}
	defer port.Close()

	// Closing the port unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	s.logger.Info("Reading samples from serial port", zap.String("port", s.path), zap.Int("baud", mode.BaudRate))
	err = s.readLines(ctx, port, out)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readLines parses r line by line. Malformed lines are skipped, serial
// links drop bytes.
func (s *Serial) readLines(ctx context.Context, r io.Reader, out chan<- detector.Sample) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sample, err := ParseLine(line, s.now().UnixMilli())
		if err != nil {
			s.logger.Debug("Skipping malformed serial line", zap.String("line", line), zap.Error(err))
			continue
		}
		if err := send(ctx, out, scale(sample, s.scale)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading serial port %s: %w", s.path, err)
	}
	return nil
}
