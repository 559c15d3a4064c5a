package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Self      string    `json:"self,omitempty"`
	Plugins   int       `json:"plugins"`
	Uptime    string    `json:"uptime"`
	StartTime time.Time `json:"start_time"`
}

// Handler serves /metrics and /healthz.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/healthz", d.handleHealth)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := d.Status()

	resp := healthResponse{
		Status:    "ok",
		Connected: status.Connected,
		Self:      d.client.Self(),
		Plugins:   status.Plugins,
		Uptime:    status.Uptime.Round(time.Second).String(),
		StartTime: status.StartTime,
	}
	code := http.StatusOK
	if !status.Running {
		resp.Status = "stopped"
		code = http.StatusServiceUnavailable
	} else if !status.Connected {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// startServer listens on the metrics address. The listener is opened
// before returning so address errors surface from Start.
func (d *Daemon) startServer() error {
	ln, err := net.Listen("tcp", d.config.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.config.Metrics.Addr, err)
	}

	d.server = &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.serverAddr = ln.Addr().String()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	d.logger.Info().Str("addr", d.serverAddr).Msg("Metrics server started")
	return nil
}
