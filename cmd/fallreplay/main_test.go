package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusvidal2/falldetect/detector"
)

func TestRun_ReportsFall(t *testing.T) {
	det := detector.DefaultConfig()
	det.BufferSize = 1
	opts := options{det: det, scale: 1, noColor: true}

	rec := `t_ms,x,y,z
0,9.8,0,0
10,1,0,0
150,1,0,0
200,25,0,0
300,9.8,0,0
`
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader(rec), &out, opts))

	got := out.String()
	assert.Contains(t, got, "Free fall (140ms)")
	assert.Contains(t, got, "FALL")
	assert.Contains(t, got, "samples     5")
	assert.Contains(t, got, "falls       1 at t_ms [200]")
	assert.NotContains(t, got, "\033[")
}

func TestRun_QuietPrintsStateChanges(t *testing.T) {
	det := detector.DefaultConfig()
	det.BufferSize = 1
	opts := options{det: det, scale: 1, quiet: true, noColor: true}

	rec := "0,0,0,9.8\n10,0,0,9.8\n20,0,0,9.8\n"
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader(rec), &out, opts))

	assert.Equal(t, 1, strings.Count(out.String(), "Monitoring"))
	assert.Contains(t, out.String(), "falls       0")
}

func TestRun_UntimedRecording(t *testing.T) {
	det := detector.DefaultConfig()
	det.BufferSize = 1
	opts := options{det: det, scale: 1, interval: 50 * time.Millisecond, noColor: true}

	rec := "9.8,0,0\n1,0,0\n1,0,0\n1,0,0\n25,0,0\n"
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), strings.NewReader(rec), &out, opts))

	assert.Contains(t, out.String(), "samples     5")
	assert.Contains(t, out.String(), "falls       1 at t_ms [200]")
}

func TestRun_MalformedRecording(t *testing.T) {
	opts := options{det: detector.DefaultConfig(), scale: 1, noColor: true}
	err := run(context.Background(), strings.NewReader("0,1,2,3\nbroken\n"), &bytes.Buffer{}, opts)
	assert.Error(t, err)
}
