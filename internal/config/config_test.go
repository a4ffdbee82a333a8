package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedium-project/tedium-host/internal/device"
)

func TestDefaultMatchesAdapterConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, device.VendorID, cfg.VendorID)
	assert.Equal(t, device.ProductID, cfg.ProductID)
	assert.True(t, cfg.AnnounceMDNS)
}

func TestParseOverridesDefaults(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := Parse([]string{
		"--vendor-id=0x1234",
		"--product-id=4321",
		"-vv",
		"--stats-log=/tmp/stats.log",
		"--mdns=false",
		"--monitor-addr=:9999",
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), cfg.VendorID)
	assert.Equal(t, uint16(4321), cfg.ProductID)
	assert.Equal(t, 2, cfg.DebugVerbosity)
	assert.Equal(t, "/tmp/stats.log", cfg.StatsLogPath)
	assert.False(t, cfg.AnnounceMDNS)
	assert.Equal(t, ":9999", cfg.MonitorAddr)
}

func TestParseHelpSetsHelpAndSkipsOtherFields(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := Parse([]string{"--help"}, &buf)
	require.NoError(t, err)
	assert.True(t, cfg.Help)
	assert.NotEmpty(t, buf.String())
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	var buf bytes.Buffer
	_, err := Parse([]string{"--not-a-flag"}, &buf)
	assert.Error(t, err)
}

func TestParseAudiotapDefaultsTargetChannelZeroTimeslotZero(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := ParseAudiotap(nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Channel)
	assert.Equal(t, 0, cfg.Timeslot)
	assert.False(t, cfg.CaptureMic)
}

func TestParseAudiotapCaptureFlag(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := ParseAudiotap([]string{"--channel=2", "--timeslot=5", "--capture"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Channel)
	assert.Equal(t, 5, cfg.Timeslot)
	assert.True(t, cfg.CaptureMic)
}
