// Package config loads simulation parameters the way the teacher's own
// direwolf.conf/pflag layering does: sane defaults, optionally overridden by
// a YAML file, optionally overridden again by command-line flags.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Channel holds the parameters of the software channel model.
type Channel struct {
	Host           string    `yaml:"host"`
	Port           int       `yaml:"port"`
	SNRdB          float64   `yaml:"snr_db"`
	ImpulseResp    []float64 `yaml:"impulse_response"` // real taps; empty means identity channel
}

// Chip describes one simulated station to launch.
type Chip struct {
	Name       string `yaml:"name"`
	Role       string `yaml:"role"` // "AP" or "STA"
	FixedRate  int    `yaml:"fixed_rate"`  // Mbps, 0 means use rate-selection ladder
	SSID       string `yaml:"ssid"`
	AuthShared bool   `yaml:"auth_shared"` // use shared-key instead of open-system authentication
	WEPKeyID   int    `yaml:"wep_key_id"`
}

// Config is the full simulation configuration.
type Config struct {
	Channel Channel `yaml:"channel"`
	Chips   []Chip  `yaml:"chips"`

	// CorrelationThreshold is the STF-detection correlation magnitude above
	// which a frame is considered detected.
	CorrelationThreshold float64 `yaml:"correlation_threshold"`

	// InterFrameDelayMillis approximates the 802.11 contention window / SIFS gap
	// between a MAC's consecutive actions, as a fixed delay rather than a
	// modeled backoff.
	InterFrameDelayMillis int `yaml:"inter_frame_delay_millis"`

	// EventLogDir, when non-empty, enables the daily CSV event log.
	EventLogDir string `yaml:"event_log_dir"`

	// DiscoveryEnabled advertises the channel endpoint over DNS-SD. The
	// channel still binds Channel.Host/Port, and chips are not resolved
	// through DNS-SD.
	DiscoveryEnabled bool `yaml:"discovery_enabled"`

	// BeaconIntervalMillis is the AP's gap between consecutive beacon
	// broadcasts (BEACON_BROADCAST_INTERVAL).
	BeaconIntervalMillis int `yaml:"beacon_interval_millis"`

	// PassiveScanMillis is how long a STA listens for beacons before
	// starting active probing (PASSIVE_SCANNING_TIME).
	PassiveScanMillis int `yaml:"passive_scan_millis"`

	// ProbeIntervalMillis is a STA's gap between consecutive probe request
	// broadcasts during active scanning (PROBE_REQUEST_BROADCAST_INTERVAL).
	ProbeIntervalMillis int `yaml:"probe_interval_millis"`

	// AckWaitMillis is how long a MAC waits for an ACK before retrying a
	// frame, once per SHORT_RETRY_LIMIT attempt.
	AckWaitMillis int `yaml:"ack_wait_millis"`

	// AuthenticationAttempts is the number of consecutive authentication
	// failures before a STA blacklists the probed AP (AUTHENTICATION_ATTEMPTS).
	AuthenticationAttempts int `yaml:"authentication_attempts"`
}

// Default returns the built-in defaults, matching the constants from
// wifi_settings.py (CHANNEL_PORT=65535, SHORT_RETRY_LIMIT handled in mac).
func Default() Config {
	return Config{
		Channel: Channel{
			Host:  "127.0.0.1",
			Port:  65535,
			SNRdB: 30,
		},
		CorrelationThreshold: 1.5,
		InterFrameDelayMillis: 10,

		// Timing constants below have no value retrievable from the pack
		// (BEACON_BROADCAST_INTERVAL, PASSIVE_SCANNING_TIME,
		// PROBE_REQUEST_BROADCAST_INTERVAL, AUTHENTICATION_ATTEMPTS are
		// imported via a wildcard import in the original and never defined
		// in any retrieved settings file); scaled down from the real-world
		// Wi-Fi values they describe so a simulation run completes in a
		// reasonable time rather than the original's tens-of-seconds pacing.
		BeaconIntervalMillis:   2000,
		PassiveScanMillis:      500,
		ProbeIntervalMillis:    300,
		AckWaitMillis:          200,
		AuthenticationAttempts: 3,
	}
}

// Load reads a YAML file over the defaults. A missing path is not an error;
// it simply returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers pflag overrides for the scalar channel/simulation
// parameters, the same flag-over-file layering as the teacher's CLI.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Channel.Host, "channel-host", c.Channel.Host, "channel server host")
	fs.IntVar(&c.Channel.Port, "channel-port", c.Channel.Port, "channel server port")
	fs.Float64Var(&c.Channel.SNRdB, "snr-db", c.Channel.SNRdB, "channel target SNR in dB")
	fs.Float64Var(&c.CorrelationThreshold, "correlation-threshold", c.CorrelationThreshold, "STF detection correlation threshold")
	fs.IntVar(&c.InterFrameDelayMillis, "inter-frame-delay-ms", c.InterFrameDelayMillis, "fixed inter-frame delay in milliseconds")
	fs.StringVar(&c.EventLogDir, "event-log-dir", c.EventLogDir, "directory for daily CSV event logs, empty disables")
	fs.BoolVar(&c.DiscoveryEnabled, "discovery", c.DiscoveryEnabled, "advertise the channel over DNS-SD")
	fs.IntVar(&c.BeaconIntervalMillis, "beacon-interval-ms", c.BeaconIntervalMillis, "AP beacon broadcast interval in milliseconds")
	fs.IntVar(&c.PassiveScanMillis, "passive-scan-ms", c.PassiveScanMillis, "STA passive scanning duration in milliseconds")
	fs.IntVar(&c.ProbeIntervalMillis, "probe-interval-ms", c.ProbeIntervalMillis, "STA probe request interval in milliseconds")
	fs.IntVar(&c.AckWaitMillis, "ack-wait-ms", c.AckWaitMillis, "time to wait for an ACK before retrying")
	fs.IntVar(&c.AuthenticationAttempts, "authentication-attempts", c.AuthenticationAttempts, "consecutive authentication failures before blacklisting an AP")
}
