// Package config parses the daemon's command-line flags. spec.md §6
// rules out config files, environment variables, or persisted state as
// part of the core, so flags plus built-in defaults are the whole
// configuration surface.
package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/tedium-project/tedium-host/internal/device"
)

// Config holds the resolved run configuration for tediumd.
type Config struct {
	VendorID       uint16
	ProductID      uint16
	DebugVerbosity int
	StatsLogPath   string
	AnnounceMDNS   bool
	MonitorAddr    string
	Help           bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		VendorID:       device.VendorID,
		ProductID:      device.ProductID,
		DebugVerbosity: 0,
		StatsLogPath:   "",
		AnnounceMDNS:   true,
		MonitorAddr:    ":7700",
	}
}

// Parse parses args (excluding the program name) into a Config,
// starting from Default(). usageOut receives the usage text when -h/--help
// is requested or parsing fails.
func Parse(args []string, usageOut io.Writer) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("tediumd", pflag.ContinueOnError)
	fs.SetOutput(usageOut)

	vendorID := fs.Uint16("vendor-id", cfg.VendorID, "USB vendor ID of the adapter.")
	productID := fs.Uint16("product-id", cfg.ProductID, "USB product ID of the adapter.")
	verbosity := fs.CountP("verbose", "v", "Increase debug event verbosity (repeatable).")
	statsLogPath := fs.String("stats-log", cfg.StatsLogPath, "Directory for daily statistics snapshot files (empty disables).")
	announceMDNS := fs.Bool("mdns", cfg.AnnounceMDNS, "Announce the monitor endpoint over mDNS/DNS-SD.")
	monitorAddr := fs.String("monitor-addr", cfg.MonitorAddr, "Listen address for the JSON-lines monitor endpoint.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(usageOut, "tediumd - Tedium T1/ESF host control plane daemon\n\n")
		fmt.Fprintf(usageOut, "Usage: tediumd [OPTIONS]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *help {
		fs.Usage()
		return Config{Help: true}, nil
	}

	cfg.VendorID = *vendorID
	cfg.ProductID = *productID
	cfg.DebugVerbosity = *verbosity
	cfg.StatsLogPath = *statsLogPath
	cfg.AnnounceMDNS = *announceMDNS
	cfg.MonitorAddr = *monitorAddr
	return cfg, nil
}

// AudiotapConfig holds the resolved run configuration for the audiotap
// bench tool, which targets a single timeslot rather than the whole
// adapter.
type AudiotapConfig struct {
	VendorID   uint16
	ProductID  uint16
	Channel    int
	Timeslot   int
	CaptureMic bool
	Help       bool
}

// ParseAudiotap parses args into an AudiotapConfig.
func ParseAudiotap(args []string, usageOut io.Writer) (AudiotapConfig, error) {
	cfg := AudiotapConfig{
		VendorID:  device.VendorID,
		ProductID: device.ProductID,
		Channel:   0,
		Timeslot:  0,
	}

	fs := pflag.NewFlagSet("tedium-audiotap", pflag.ContinueOnError)
	fs.SetOutput(usageOut)

	channel := fs.Int("channel", cfg.Channel, "T1 channel index (0-7).")
	timeslot := fs.Int("timeslot", cfg.Timeslot, "Timeslot index within the channel (0-23).")
	captureMic := fs.Bool("capture", false, "Patch host microphone input into the target timeslot instead of playing it out.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(usageOut, "tedium-audiotap - bench audio tap for a single timeslot\n\n")
		fmt.Fprintf(usageOut, "Usage: tedium-audiotap [OPTIONS]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return AudiotapConfig{}, err
	}

	if *help {
		fs.Usage()
		return AudiotapConfig{Help: true}, nil
	}

	cfg.Channel = *channel
	cfg.Timeslot = *timeslot
	cfg.CaptureMic = *captureMic
	return cfg, nil
}

// MonitorClientConfig holds the resolved run configuration for
// tedium-monitor, the event-bus observer client.
type MonitorClientConfig struct {
	Addr    string
	Timeout int
	Help    bool
}

// ParseMonitorClient parses args into a MonitorClientConfig. An empty
// Addr means "discover the daemon via mDNS" rather than dial a fixed
// address.
func ParseMonitorClient(args []string, usageOut io.Writer) (MonitorClientConfig, error) {
	var cfg MonitorClientConfig

	fs := pflag.NewFlagSet("tedium-monitor", pflag.ContinueOnError)
	fs.SetOutput(usageOut)

	addr := fs.String("addr", "", "Connect to a tediumd monitor endpoint at host:port instead of discovering one via mDNS.")
	timeout := fs.Int("discover-timeout", 5, "Seconds to wait for an mDNS-discovered endpoint before giving up.")
	help := fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		fmt.Fprintf(usageOut, "tedium-monitor - observe a tediumd event bus\n\n")
		fmt.Fprintf(usageOut, "Usage: tedium-monitor [OPTIONS]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return MonitorClientConfig{}, err
	}

	if *help {
		fs.Usage()
		return MonitorClientConfig{Help: true}, nil
	}

	cfg.Addr = *addr
	cfg.Timeout = *timeout
	return cfg, nil
}
