package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/lynae/internal/daemon"
	"github.com/harun/lynae/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Lynae daemon service",
	Long: `Start the Lynae daemon service in the foreground.
The daemon connects to the session bridge, loads the plugin directory and
answers commands until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	// Check if daemon is already running
	pidFile := daemon.PIDFilePath(cfg.DataDir)
	if isRunning(pidFile) {
		return fmt.Errorf("daemon is already running (PID file: %s)", pidFile)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		Console:     cfg.Logging.Console,
		Pretty:      cfg.Logging.Pretty,
		Redaction:   cfg.Logging.Redaction,
		FilterNoise: cfg.Logging.FilterNoise,
		MaxSize:     cfg.Logging.MaxSize,
		MaxAge:      cfg.Logging.MaxAge,
		Compress:    cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting Lynae daemon (PID %d)\n", os.Getpid())
	return d.Run(ctx)
}
