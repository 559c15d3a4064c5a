package commands

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/outbound"
	"github.com/harun/lynae/pkg/plugin"
)

type pingHandler struct {
	deps *Deps
}

func (h *pingHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	now := h.deps.Now()

	var latency time.Duration
	if cmd.Raw != nil && cmd.Raw.Timestamp != 0 {
		latency = now.Sub(cmd.Raw.SentAt())
		if latency < 0 {
			latency = 0
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	b.WriteString("╭─「 *SYSTEM INFO* 」\n│\n")
	b.WriteString("│ *🖥️ Runtime*\n")
	fmt.Fprintf(&b, "│ • OS: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "│ • Architecture: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "│ • Go: %s\n", runtime.Version())
	b.WriteString("│\n│ *💾 Memory*\n")
	fmt.Fprintf(&b, "│ • Heap: %s\n", formatBytes(mem.HeapAlloc))
	fmt.Fprintf(&b, "│ • Reserved: %s\n", formatBytes(mem.Sys))
	fmt.Fprintf(&b, "│ • Goroutines: %d\n", runtime.NumGoroutine())
	b.WriteString("│\n│ *⚙️ Processor*\n")
	fmt.Fprintf(&b, "│ • Cores: %d\n", runtime.NumCPU())
	b.WriteString("│\n│ *⏱️ Uptime*\n")
	fmt.Fprintf(&b, "│ • %s\n", formatUptime(now.Sub(h.deps.StartedAt)))
	b.WriteString("│\n│ *📡 Bot Ping*\n")
	fmt.Fprintf(&b, "│ • %dms\n", latency.Milliseconds())
	b.WriteString("│\n╰─「 *Pong! 🏓* 」")

	_, err := ec.Client.SendText(ctx, cmd.Chat, b.String(), outbound.WithoutQuote())
	return err
}

func formatBytes(n uint64) string {
	if n == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(n) / math.Pow(1024, float64(i))
	return fmt.Sprintf("%s %s", strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), "."), units[i])
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
