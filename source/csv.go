package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/viniciusvidal2/falldetect/detector"
)

// DefaultCSVInterval spaces rows that carry no timestamp.
const DefaultCSVInterval = 10 * time.Millisecond

// CSV replays a recording with rows "t_ms,x,y,z" or "x,y,z". A non-numeric
// first row is taken as a header, and lines starting with '#' are skipped.
type CSV struct {
	r     io.Reader
	scale float64

	// Interval stamps rows without a timestamp, counting on from the
	// previous row (or from 0 for the first).
	Interval time.Duration
}

// NewCSV creates a CSV source. Axes are multiplied by scale, use
// StandardGravity for recordings in g.
func NewCSV(r io.Reader, scale float64) *CSV {
	return &CSV{r: r, scale: scale, Interval: DefaultCSVInterval}
}

// Stream sends every row in order and returns nil at end of input.
func (c *CSV) Stream(ctx context.Context, out chan<- detector.Sample) error {
	cr := csv.NewReader(c.r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var next int64
	step := c.Interval.Milliseconds()
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading csv: %w", err)
		}
		if row == 1 && isHeader(rec) {
			continue
		}

		s, err := parseFields(rec, next, true)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return fmt.Errorf("csv line %d: %w", line, err)
		}
		next = s.TimeMs + step

		if err := send(ctx, out, scale(s, c.scale)); err != nil {
			return err
		}
	}
}

// isHeader reports whether a row has a non-numeric field.
func isHeader(rec []string) bool {
	for _, f := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return true
		}
	}
	return false
}
