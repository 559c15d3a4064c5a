package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/lynae/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Show the current status of the Lynae daemon service.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type healthReport struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Self      string `json:"self"`
	Plugins   int    `json:"plugins"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pidFile := daemon.PIDFilePath(cfg.DataDir)

	if !isRunning(pidFile) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", pid)

	// Get PID file modification time for uptime calculation
	if fileInfo, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(fileInfo.ModTime())))
	}

	if cfg.Metrics.Enabled {
		if report, err := fetchHealth(cfg.Metrics.Addr); err == nil {
			printHealth(out, report)
		} else {
			fmt.Fprintf(out, "Health: unavailable (%v)\n", err)
		}
	}

	return nil
}

func fetchHealth(addr string) (*healthReport, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &report, nil
}

func printHealth(out io.Writer, report *healthReport) {
	fmt.Fprintf(out, "Health: %s\n", report.Status)
	fmt.Fprintf(out, "WhatsApp: %s\n", connectedLabel(report))
	fmt.Fprintf(out, "Plugins: %d\n", report.Plugins)
}

func connectedLabel(report *healthReport) string {
	if !report.Connected {
		return "disconnected"
	}
	if report.Self == "" {
		return "connected"
	}
	return "connected as " + report.Self
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
