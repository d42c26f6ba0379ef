// Command aerowave runs a self-contained simulation of an IEEE 802.11a/g
// network: one software channel plus one or more chips (one AP, the rest
// STAs), wired together exactly as the PHY/MAC/Channel components describe.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/huskysdr/aerowave/internal/channel"
	"github.com/huskysdr/aerowave/internal/chip"
	"github.com/huskysdr/aerowave/internal/config"
	"github.com/huskysdr/aerowave/internal/discovery"
	"github.com/huskysdr/aerowave/internal/eventlog"
	"github.com/huskysdr/aerowave/internal/mac"
)

func main() {
	configFile := preParseConfigFile(os.Args[1:])

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pflag.StringP("config-file", "c", "", "YAML config file. Missing file falls back to built-in defaults.")
	message := pflag.StringP("message", "m", "", "After the network settles, have the first STA send this text to its AP.")
	runFor := pflag.DurationP("run-for", "t", 10*time.Second, "how long to run the simulation before shutting down")
	cfg.BindFlags(pflag.CommandLine)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "aerowave - a software 802.11a/g PHY/MAC/channel simulation.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: aerowave [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.TimeOnly})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *message, *runFor); err != nil {
		logger.Error("aerowave: fatal", "err", err)
		os.Exit(1)
	}
}

// preParseConfigFile extracts just --config-file/-c from args, ignoring
// every other flag, so the YAML file can be loaded before the rest of the
// flags (whose defaults come from it) are registered on pflag.CommandLine.
func preParseConfigFile(args []string) string {
	fs := pflag.NewFlagSet("aerowave-preparse", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	configFile := fs.StringP("config-file", "c", "", "")
	_ = fs.Parse(args)
	return *configFile
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger, message string, runFor time.Duration) error {
	var eventLog *eventlog.Logger
	if cfg.EventLogDir != "" {
		eventLog = &eventlog.Logger{Dir: cfg.EventLogDir}
		defer eventLog.Close()
	}

	channelAddr, stopChannel, err := startChannel(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("aerowave: start channel: %w", err)
	}
	defer stopChannel()

	if len(cfg.Chips) == 0 {
		cfg.Chips = defaultChips()
	}

	chips := make([]*chip.Chip, 0, len(cfg.Chips))
	var firstSTA *chip.Chip
	for _, spec := range cfg.Chips {
		c, err := launchChip(ctx, cfg, spec, channelAddr, logger, eventLog)
		if err != nil {
			return fmt.Errorf("aerowave: launch chip %s: %w", spec.Name, err)
		}
		chips = append(chips, c)
		if c.Role == mac.RoleSTA && firstSTA == nil {
			firstSTA = c
		}
	}
	defer func() {
		for _, c := range chips {
			c.Shutdown()
		}
	}()

	if message != "" && firstSTA != nil {
		settle := associationSettleDuration(cfg)
		go func() {
			time.Sleep(settle)
			if err := firstSTA.SendText(message); err != nil {
				logger.Error("aerowave: send message failed", "id", firstSTA.Identifier, "err", err)
			}
		}()
	}

	timer := time.NewTimer(runFor)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		logger.Info("aerowave: interrupted, shutting down")
	case <-timer.C:
		logger.Info("aerowave: run duration elapsed, shutting down")
	}
	return nil
}

func startChannel(ctx context.Context, cfg config.Config, logger *log.Logger) (string, func(), error) {
	addr := net.JoinHostPort(cfg.Channel.Host, fmt.Sprintf("%d", cfg.Channel.Port))

	impulseResponse := make([]complex128, len(cfg.Channel.ImpulseResp))
	for i, tap := range cfg.Channel.ImpulseResp {
		impulseResponse[i] = complex(tap, 0)
	}
	model := channel.Model{ImpulseResponse: impulseResponse, SNRdB: cfg.Channel.SNRdB}

	server, err := channel.New(addr, model, logger)
	if err != nil {
		return "", nil, err
	}
	go server.Serve()

	if cfg.DiscoveryEnabled {
		discovery.Announce(ctx, logger, "aerowave-channel", cfg.Channel.Port)
	}

	return server.Addr().String(), func() { server.Close() }, nil
}

// associationSettleDuration is a generous upper bound on how long discovery,
// authentication and association take to complete end to end, used only to
// delay the optional --message demo send until the network has settled.
func associationSettleDuration(cfg config.Config) time.Duration {
	passive := time.Duration(cfg.PassiveScanMillis) * time.Millisecond
	probes := 3 * time.Duration(cfg.ProbeIntervalMillis) * time.Millisecond
	acks := 4 * time.Duration(cfg.AckWaitMillis) * time.Millisecond
	return passive + probes + acks
}

func defaultChips() []config.Chip {
	return []config.Chip{
		{Name: "ap-1", Role: "AP"},
		{Name: "sta-1", Role: "STA"},
	}
}

func launchChip(ctx context.Context, cfg config.Config, spec config.Chip, channelAddr string, logger *log.Logger, eventLog *eventlog.Logger) (*chip.Chip, error) {
	role := mac.Role(spec.Role)
	if role != mac.RoleAP && role != mac.RoleSTA {
		return nil, fmt.Errorf("chip %s: role must be AP or STA, got %q", spec.Name, spec.Role)
	}

	authAlgorithm := mac.AuthOpenSystem
	if spec.AuthShared {
		authAlgorithm = mac.AuthSharedKey
	}

	macCfg := mac.Config{
		BeaconInterval:    time.Duration(cfg.BeaconIntervalMillis) * time.Millisecond,
		PassiveScanTime:   time.Duration(cfg.PassiveScanMillis) * time.Millisecond,
		ProbeInterval:     time.Duration(cfg.ProbeIntervalMillis) * time.Millisecond,
		AckWait:           time.Duration(cfg.AckWaitMillis) * time.Millisecond,
		AuthAttemptsLimit: cfg.AuthenticationAttempts,
		InterFrameDelay:   time.Duration(cfg.InterFrameDelayMillis) * time.Millisecond,
	}

	phyCfg := chip.PHYConfig{
		CorrelationThreshold: cfg.CorrelationThreshold,
		FixedRate:            spec.FixedRate,
	}

	return chip.New(ctx, spec.Name, role, "127.0.0.1", channelAddr, phyCfg, macCfg, authAlgorithm, spec.WEPKeyID, logger, eventLog)
}
