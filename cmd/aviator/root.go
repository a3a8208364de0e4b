package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/aviator/internal/app"
	"github.com/harrylevesque/aviator/internal/config"
	"github.com/harrylevesque/aviator/internal/console"
	"github.com/harrylevesque/aviator/internal/utils"
	"github.com/harrylevesque/aviator/pkg/version"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "aviator",
	Short: "Aviator: launch desktop apps from your phone",
	Long: "Aviator keeps a list of launchable applications on this machine and serves it to " +
		"phones on the local network. Runs the operator console by default, or headless with --headless.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	// Persistent flags (available to all subcommands).
	pf := rootCmd.PersistentFlags()
	pf.String("registry", utils.GetRegistryPath(), "Path to the app registry file")
	pf.String("log-level", "info", "Log level (debug|info|warn|error)")
	pf.String("log-format", "text", "Log format (text|json)")
	pf.String("log-file", utils.GetLogPath(), "Log file used while the console owns the terminal")

	f := rootCmd.Flags()
	f.Int("port", config.DefaultPort, "HTTP port")
	f.Bool("headless", false, "Serve without the operator console")
	f.String("service-name", "", `mDNS instance name (default "Aviator At <hostname>")`)
	f.Duration("write-timeout", config.DefaultWriteTimeout, "Per-client websocket send timeout")
	f.Bool("advertise", true, "Advertise the service over mDNS")

	// Bind flags to Viper; env support: AVIATOR_PORT, AVIATOR_HEADLESS, etc.
	_ = config.BindFlags(v, pf)
	_ = config.BindFlags(v, f)

	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(versionCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	host := app.New(cfg, version.Version, logger)
	if err := host.Start(ctx); err != nil {
		logger.Error("aviator: failed to start server", "err", err)
		return err
	}
	defer host.Close()

	if cfg.Headless {
		fmt.Printf("Aviator serving on %s (network %s)\n", host.LocalURL(), host.NetworkURL())
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	}

	// Leaving the console stops the server.
	err = console.Run(host.Registry, console.Options{
		Hostname:   utils.GetDisplayName(),
		LocalURL:   host.LocalURL(),
		NetworkURL: host.NetworkURL(),
		Version:    version.Version,
		ShowQR:     true,
	})
	if err != nil {
		logger.Error("aviator: console failed", "err", err)
		return fmt.Errorf("operator console: %w", err)
	}
	return nil
}

// newLogger writes to stderr when headless and to the log file while the
// console owns the terminal.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	if cfg.Headless || cfg.LogFile == "" {
		return utils.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat), func() {}, nil
	}
	f, err := utils.OpenLogFile(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return utils.NewLogger(f, cfg.LogLevel, cfg.LogFormat), func() { f.Close() }, nil
}

// `version` subcommand.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// registryPath resolves --registry, AVIATOR_REGISTRY or the default.
func registryPath() string {
	return v.GetString(config.KeyRegistry)
}
