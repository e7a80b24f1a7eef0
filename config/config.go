// Package config loads falld settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/viniciusvidal2/falldetect/detector"
	"github.com/viniciusvidal2/falldetect/mqtt"
)

// Source kinds.
const (
	SourceCSV      = "csv"
	SourceSerial   = "serial"
	SourceMQTT     = "mqtt"
	SourceAppleSPU = "apple"
)

// Config is the falld configuration.
type Config struct {
	DeviceID string

	Detector detector.Config

	Source struct {
		Kind       string  // csv, serial, mqtt or apple
		CSVPath    string  // "-" reads stdin
		SerialPort string
		SerialBaud int
		Scale      float64 // multiplier to m/s², 9.80665 for readings in g
	}

	MQTT struct {
		mqtt.Config
		QoS         byte
		SampleTopic string
		AlertTopic  string
	}

	Redis struct {
		Addr     string // empty disables the stream sink
		Password string
		DB       int
		Stream   string
	}

	Alert struct {
		Countdown int           // pulses before the alert is sent
		Pulse     time.Duration // time between pulses
		Siren     bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset. The returned Config is never nil: on error it
// holds defaults in place of the invalid values.
func Load() (*Config, error) {
	cfg := &Config{}
	l := loader{}

	host, _ := os.Hostname()
	cfg.DeviceID = getEnv("DEVICE_ID", host)

	cfg.Detector.FreeFallThreshold = l.float("FALL_FREE_FALL_THRESHOLD", detector.DefaultFreeFallThreshold)
	cfg.Detector.ImpactThreshold = l.float("FALL_IMPACT_THRESHOLD", detector.DefaultImpactThreshold)
	cfg.Detector.MinFreeFall = l.duration("FALL_MIN_FREE_FALL", detector.DefaultMinFreeFall)
	cfg.Detector.Window = l.duration("FALL_WINDOW", detector.DefaultWindow)
	cfg.Detector.BufferSize = l.int("FALL_BUFFER_SIZE", detector.DefaultBufferSize)

	cfg.Source.Kind = getEnv("SOURCE_KIND", SourceMQTT)
	cfg.Source.CSVPath = getEnv("SOURCE_CSV_PATH", "-")
	cfg.Source.SerialPort = getEnv("SOURCE_SERIAL_PORT", "/dev/ttyUSB0")
	cfg.Source.SerialBaud = l.int("SOURCE_SERIAL_BAUD", 115200)
	cfg.Source.Scale = l.float("SOURCE_SCALE", 1)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", mqtt.DefaultBroker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "falld-"+cfg.DeviceID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(l.int("MQTT_QOS", 1))
	cfg.MQTT.SampleTopic = getEnv("MQTT_SAMPLE_TOPIC", "sensors/accelerometer")
	cfg.MQTT.AlertTopic = getEnv("MQTT_ALERT_TOPIC", "fall/alert")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = l.int("REDIS_DB", 0)
	cfg.Redis.Stream = getEnv("REDIS_STREAM", "fall:events")

	cfg.Alert.Countdown = l.int("ALERT_COUNTDOWN", 5)
	cfg.Alert.Pulse = l.duration("ALERT_PULSE", time.Second)
	cfg.Alert.Siren = l.bool("ALERT_SIREN", false)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.MQTT.QoS > 2 {
		if l.err == nil {
			l.err = fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
		cfg.MQTT.QoS = 1
	}
	return cfg, l.err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loader parses typed values, keeping the first error.
type loader struct {
	err error
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (l *loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return f
}

func (l *loader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return n
}

func (l *loader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return b
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return d
}
