package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harun/lynae/internal/config"
	"github.com/harun/lynae/internal/daemon"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lynae",
	Short: "Lynae - WhatsApp command bot",
	Long: `Lynae is a WhatsApp chat bot that answers prefixed commands.
Commands are plugins described by manifest files and reloaded when the
files change. The bot talks to WhatsApp through a session bridge.`,
	Version:       daemon.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lynae/lynae.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return daemon.Version
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd != nil && cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// getPIDFilePath returns the PID file of the configured data directory.
func getPIDFilePath() string {
	if cfg, err := config.Load(cfgFile); err == nil {
		return daemon.PIDFilePath(cfg.DataDir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), daemon.PIDFileName)
	}
	return filepath.Join(home, ".lynae", daemon.PIDFileName)
}

func isRunning(pidFile string) bool {
	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return false
	}
	return daemon.ProcessRunning(pid)
}
