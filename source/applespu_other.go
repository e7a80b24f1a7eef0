//go:build !darwin

package source

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/detector"
)

// AppleSPU is only available on macOS.
type AppleSPU struct{}

// NewAppleSPU creates an AppleSPU source.
func NewAppleSPU(*zap.Logger) *AppleSPU { return &AppleSPU{} }

// Stream always fails outside macOS.
func (*AppleSPU) Stream(context.Context, chan<- detector.Sample) error {
	return errors.New("the Apple Silicon accelerometer is only available on macOS")
}
