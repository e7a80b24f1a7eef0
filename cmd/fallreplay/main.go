// fallreplay runs the fall detector over a recorded CSV and prints a
// per-sample trace followed by a summary. It is meant for tuning thresholds
// against recordings of real falls and everyday motion.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/viniciusvidal2/falldetect/detector"
	"github.com/viniciusvidal2/falldetect/monitor"
	"github.com/viniciusvidal2/falldetect/source"
)

var version = "dev"

// ANSI escape codes.
const (
	rst  = "\033[0m"
	bold = "\033[1m"
	dim  = "\033[2m"
	yel  = "\033[33m"
	bred = "\033[91m"
)

type options struct {
	det      detector.Config
	scale    float64
	interval time.Duration
	quiet    bool
	noColor  bool
}

func main() {
	opts := options{det: detector.DefaultConfig(), scale: 1, interval: source.DefaultCSVInterval}

	cmd := &cobra.Command{
		Use:   "fallreplay [recording.csv]",
		Short: "Replay an accelerometer recording through the fall detector",
		Long: `fallreplay reads a CSV recording of t_ms,x,y,z rows (or x,y,z without a
timestamp) and runs the fall detector over it, printing the raw and
smoothed magnitude and detector state for every sample. Rows without a
timestamp are spaced by --interval.

Reads stdin when no file is given. Use --scale 9.80665 for recordings
in g.`,
		Args:    cobra.MaximumNArgs(1),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(os.Stdin)
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return run(cmd.Context(), in, cmd.OutOrStdout(), opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.Float64Var(&opts.det.FreeFallThreshold, "free-fall", opts.det.FreeFallThreshold, "free-fall threshold (m/s²)")
	f.Float64Var(&opts.det.ImpactThreshold, "impact", opts.det.ImpactThreshold, "impact threshold (m/s²)")
	f.DurationVar(&opts.det.MinFreeFall, "min-free-fall", opts.det.MinFreeFall, "minimum free-fall duration")
	f.DurationVar(&opts.det.Window, "window", opts.det.Window, "free-fall to impact window")
	f.IntVar(&opts.det.BufferSize, "smoothing", opts.det.BufferSize, "moving average length in samples")
	f.Float64Var(&opts.scale, "scale", opts.scale, "multiplier to m/s²")
	f.DurationVar(&opts.interval, "interval", opts.interval, "sample spacing for rows without a timestamp")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "only print state changes and falls")
	f.BoolVar(&opts.noColor, "no-color", false, "disable ANSI colors")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, w io.Writer, opts options) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	paint := func(code, s string) string {
		if opts.noColor {
			return s
		}
		return code + s + rst
	}

	var (
		raw, smoothed []float64
		fallTimes     []int64
		lastLabel     string
	)
	det := detector.New(opts.det)
	observe := func(s detector.Sample, out detector.Outcome) {
		raw = append(raw, out.Raw)
		smoothed = append(smoothed, out.Smoothed)

		line := fmt.Sprintf("%8d  %7.2f  %7.2f  %s", s.TimeMs, out.Raw, out.Smoothed, out.Label)
		switch {
		case out.FallDetected:
			fallTimes = append(fallTimes, s.TimeMs)
			fmt.Fprintln(w, paint(bred+bold, line+"  FALL"))
		case out.Phase == detector.InFreeFall:
			if !opts.quiet || out.Phase.String() != lastLabel {
				fmt.Fprintln(w, paint(yel, line))
			}
		default:
			if !opts.quiet || out.Phase.String() != lastLabel {
				fmt.Fprintln(w, paint(dim, line))
			}
		}
		lastLabel = out.Phase.String()
	}

	cfg := det.Config()
	fmt.Fprintln(w, paint(bold, fmt.Sprintf("free fall < %.1f for %v, impact > %.1f within %v, smoothing %d",
		cfg.FreeFallThreshold, cfg.MinFreeFall, cfg.ImpactThreshold, cfg.Window, cfg.BufferSize)))
	fmt.Fprintln(w, paint(bold, fmt.Sprintf("%8s  %7s  %7s  %s", "t_ms", "raw", "smooth", "state")))

	mon := monitor.New(det, nil, monitor.WithObserver(observe))

	src := source.NewCSV(in, opts.scale)
	if opts.interval > 0 {
		src.Interval = opts.interval
	}

	samples := make(chan detector.Sample, 256)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Stream(ctx, samples)
		close(samples)
	}()

	if err := mon.Run(ctx, samples); err != nil {
		return err
	}
	if err := <-srcErr; err != nil {
		return err
	}

	printSummary(w, paint, raw, smoothed, fallTimes, mon.Stats())
	return nil
}

func printSummary(w io.Writer, paint func(code, s string) string, raw, smoothed []float64, fallTimes []int64, st monitor.Stats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(bold, "summary"))
	fmt.Fprintf(w, "  samples     %d\n", st.Samples)
	if len(raw) > 0 {
		fmt.Fprintf(w, "  raw         mean %.2f  sd %.2f  min %.2f  max %.2f\n",
			stat.Mean(raw, nil), stat.StdDev(raw, nil), floats.Min(raw), floats.Max(raw))
		fmt.Fprintf(w, "  smoothed    mean %.2f  sd %.2f  min %.2f  max %.2f\n",
			stat.Mean(smoothed, nil), stat.StdDev(smoothed, nil), floats.Min(smoothed), floats.Max(smoothed))
	}
	fmt.Fprintf(w, "  free falls  %d (%d aborted)\n", st.FreeFalls, st.Aborted)
	if st.Falls == 0 {
		fmt.Fprintf(w, "  falls       0\n")
		return
	}
	fmt.Fprintln(w, paint(bred+bold, fmt.Sprintf("  falls       %d at t_ms %v", st.Falls, fallTimes)))
}
