package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciusvidal2/falldetect/config"
)

func TestCommand_VersionWithBadConfig(t *testing.T) {
	t.Setenv("FALL_WINDOW", "3000")
	cfg, err := config.Load()
	require.Error(t, err)

	var out bytes.Buffer
	cmd := newCommand(cfg, err)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), version)
}

func TestCommand_HelpWithBadConfig(t *testing.T) {
	var out bytes.Buffer
	cmd := newCommand(&config.Config{}, errors.New("invalid FALL_WINDOW"))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "--countdown")
}

func TestCommand_RunReportsBadConfig(t *testing.T) {
	cmd := newCommand(&config.Config{}, errors.New(`invalid FALL_WINDOW "3000"`))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FALL_WINDOW")
}
