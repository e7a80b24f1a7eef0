// falld watches an accelerometer stream for falls. When one is detected it
// counts down, giving the wearer a chance to cancel, then raises an alert
// over MQTT and optionally a Redis stream.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/alert"
	"github.com/viniciusvidal2/falldetect/config"
	"github.com/viniciusvidal2/falldetect/detector"
	"github.com/viniciusvidal2/falldetect/logger"
	"github.com/viniciusvidal2/falldetect/monitor"
	"github.com/viniciusvidal2/falldetect/mqtt"
	"github.com/viniciusvidal2/falldetect/source"
)

var version = "dev"

func main() {
	cfg, cfgErr := config.Load()
	if err := fang.Execute(context.Background(), newCommand(cfg, cfgErr)); err != nil {
		os.Exit(1)
	}
}

// newCommand builds the falld command. A configuration error is reported
// when the daemon runs, so --help and --version still work.
func newCommand(cfg *config.Config, cfgErr error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "falld",
		Short: "Fall detection daemon",
		Long: `falld reads 3-axis accelerometer samples and detects falls: a free-fall
dip in acceleration magnitude followed by an impact spike within a short
window.

On a fall it pulses for a few seconds (press Enter to cancel), then
publishes the alert to MQTT and, when configured, a Redis stream.

Samples come from an MQTT topic (default), a serial IMU, a CSV recording,
or the Apple Silicon accelerometer (requires sensord).

Every flag defaults to its environment variable (see config).`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return fmt.Errorf("loading configuration: %w", cfgErr)
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "device ID attached to alerts")
	f.StringVarP(&cfg.Source.Kind, "source", "s", cfg.Source.Kind, "sample source: mqtt, serial, csv or apple")
	f.StringVar(&cfg.Source.CSVPath, "csv", cfg.Source.CSVPath, "CSV recording for the csv source (- for stdin)")
	f.StringVar(&cfg.Source.SerialPort, "port", cfg.Source.SerialPort, "serial port for the serial source")
	f.IntVar(&cfg.Source.SerialBaud, "baud", cfg.Source.SerialBaud, "serial baud rate")
	f.Float64Var(&cfg.Source.Scale, "scale", cfg.Source.Scale, "multiplier to m/s² (9.80665 for readings in g)")
	f.StringVar(&cfg.MQTT.Broker, "broker", cfg.MQTT.Broker, "MQTT broker URL, empty disables MQTT")
	f.StringVar(&cfg.MQTT.SampleTopic, "sample-topic", cfg.MQTT.SampleTopic, "MQTT topic carrying samples")
	f.StringVar(&cfg.MQTT.AlertTopic, "alert-topic", cfg.MQTT.AlertTopic, "MQTT topic for fall alerts")
	f.StringVar(&cfg.Redis.Addr, "redis", cfg.Redis.Addr, "Redis address for the alert stream, empty disables it")
	f.Float64Var(&cfg.Detector.FreeFallThreshold, "free-fall", cfg.Detector.FreeFallThreshold, "free-fall threshold (m/s²)")
	f.Float64Var(&cfg.Detector.ImpactThreshold, "impact", cfg.Detector.ImpactThreshold, "impact threshold (m/s²)")
	f.DurationVar(&cfg.Detector.MinFreeFall, "min-free-fall", cfg.Detector.MinFreeFall, "minimum free-fall duration")
	f.DurationVar(&cfg.Detector.Window, "window", cfg.Detector.Window, "free-fall to impact window")
	f.IntVar(&cfg.Detector.BufferSize, "smoothing", cfg.Detector.BufferSize, "moving average length in samples")
	f.IntVar(&cfg.Alert.Countdown, "countdown", cfg.Alert.Countdown, "pulses before an alert is sent")
	f.DurationVar(&cfg.Alert.Pulse, "pulse", cfg.Alert.Pulse, "time between countdown pulses")
	f.BoolVar(&cfg.Alert.Siren, "siren", cfg.Alert.Siren, "play a tone on every countdown pulse")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn or error")
	f.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format: json or console")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "falld")
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	sinks := alert.Multi{alert.LogSink{Logger: log}}

	var client *mqtt.Client
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.NewClient(cfg.MQTT.Config, log)
		if err != nil {
			return err
		}
		defer client.Disconnect()
		sinks = append(sinks, alert.NewMQTTSink(client, cfg.MQTT.AlertTopic, cfg.MQTT.QoS))
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis %s: %w", cfg.Redis.Addr, err)
		}
		sinks = append(sinks, alert.NewRedisSink(rdb, cfg.Redis.Stream))
	}

	dopts := []alert.DispatcherOption{
		alert.WithCountdown(cfg.Alert.Countdown, cfg.Alert.Pulse),
		alert.WithDispatcherLogger(log),
	}
	if cfg.Alert.Siren {
		dopts = append(dopts, alert.WithNotifier(alert.NewSiren(880, 500*time.Millisecond, log)))
	}
	dispatcher := alert.NewDispatcher(sinks, dopts...)

	src, closeSrc, err := openSource(cfg, client, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	if !(cfg.Source.Kind == config.SourceCSV && cfg.Source.CSVPath == "-") {
		go cancelOnEnter(os.Stdin, dispatcher, log)
	}

	mon := monitor.New(detector.New(cfg.Detector), dispatcher,
		monitor.WithLogger(log),
		monitor.WithDeviceID(cfg.DeviceID),
	)

	samples := make(chan detector.Sample, 256)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Stream(ctx, samples)
		close(samples)
	}()

	err = mon.Run(ctx, samples)
	dispatcher.Wait()

	stats := mon.Stats()
	log.Info("Fall monitor stopped",
		zap.Int64("samples", stats.Samples),
		zap.Int64("free_falls", stats.FreeFalls),
		zap.Int64("aborted", stats.Aborted),
		zap.Int64("falls", stats.Falls),
	)

	if serr := <-srcErr; serr != nil && !errors.Is(serr, context.Canceled) {
		return fmt.Errorf("%s source: %w", cfg.Source.Kind, serr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openSource(cfg *config.Config, client *mqtt.Client, log *zap.Logger) (source.Source, func(), error) {
	nop := func() {}
	switch cfg.Source.Kind {
	case config.SourceCSV:
		if cfg.Source.CSVPath == "-" {
			return source.NewCSV(os.Stdin, cfg.Source.Scale), nop, nil
		}
		f, err := os.Open(cfg.Source.CSVPath)
		if err != nil {
			return nil, nop, fmt.Errorf("opening recording: %w", err)
		}
		return source.NewCSV(f, cfg.Source.Scale), func() { f.Close() }, nil
	case config.SourceSerial:
		opts := source.PortOptions{BaudRate: cfg.Source.SerialBaud}
		return source.NewSerial(cfg.Source.SerialPort, opts, cfg.Source.Scale, log), nop, nil
	case config.SourceMQTT:
		if client == nil {
			return nil, nop, errors.New("the mqtt source needs a broker")
		}
		return source.NewMQTT(client, cfg.MQTT.SampleTopic, cfg.MQTT.QoS, cfg.Source.Scale, log), nop, nil
	case config.SourceAppleSPU:
		return source.NewAppleSPU(log), nop, nil
	default:
		return nil, nop, fmt.Errorf("unknown source %q: expected mqtt, serial, csv or apple", cfg.Source.Kind)
	}
}

// cancelOnEnter cancels the pending alert whenever a line is read from r.
func cancelOnEnter(r io.Reader, d *alert.Dispatcher, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if d.Cancel() {
			log.Info("Fall alert cancelled by user")
		}
	}
}
