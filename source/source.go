// Package source provides the sample streams the fall monitor consumes:
// recorded CSV files, serial-attached IMUs, MQTT topics fed by a wearable,
// and the Apple Silicon accelerometer.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/viniciusvidal2/falldetect/detector"
)

// StandardGravity converts readings in g to m/s².
const StandardGravity = 9.80665

// ErrMalformedLine is returned for sample lines that cannot be parsed.
var ErrMalformedLine = errors.New("malformed sample line")

// Source streams samples into out until it is exhausted, fails, or ctx is
// cancelled. Implementations never close out.
type Source interface {
	Stream(ctx context.Context, out chan<- detector.Sample) error
}

// ParseLine parses "t,x,y,z" or "x,y,z", separated by commas and/or
// whitespace. Lines without a timestamp are stamped with nowMs.
func ParseLine(line string, nowMs int64) (detector.Sample, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	return parseFields(fields, nowMs, true)
}

func parseFields(fields []string, nowMs int64, allowUntimed bool) (detector.Sample, error) {
	var s detector.Sample
	switch {
	case len(fields) == 4:
		t, err := parseTimestamp(fields[0])
		if err != nil {
			return s, fmt.Errorf("%w: timestamp %q", ErrMalformedLine, fields[0])
		}
		s.TimeMs = t
		fields = fields[1:]
	case len(fields) == 3 && allowUntimed:
		s.TimeMs = nowMs
	default:
		return s, fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}

	axes := [3]*float64{&s.X, &s.Y, &s.Z}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return s, fmt.Errorf("%w: axis %q", ErrMalformedLine, f)
		}
		*axes[i] = v
	}
	return s, nil
}

func parseTimestamp(f string) (int64, error) {
	f = strings.TrimSpace(f)
	if t, err := strconv.ParseInt(f, 10, 64); err == nil {
		return t, nil
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// scale multiplies the axes by k; zero means unset.
func scale(s detector.Sample, k float64) detector.Sample {
	if k == 0 || k == 1 {
		return s
	}
	s.X *= k
	s.Y *= k
	s.Z *= k
	return s
}

// send delivers s unless ctx is done first.
func send(ctx context.Context, out chan<- detector.Sample, s detector.Sample) error {
	select {
	case out <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
