package daemon

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// statsSchedule is how often gauges that have no event of their own are
// refreshed.
const statsSchedule = "@every 1m"

// newScheduler registers the periodic maintenance jobs.
func (d *Daemon) newScheduler() (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	if d.config.Cache.SweepSchedule != "" {
		if _, err := c.AddFunc(d.config.Cache.SweepSchedule, d.sweepCache); err != nil {
			return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", d.config.Cache.SweepSchedule, err)
		}
	}
	if _, err := c.AddFunc(statsSchedule, d.reportStats); err != nil {
		return nil, err
	}
	return c, nil
}

// sweepCache drops expired download cache entries.
func (d *Daemon) sweepCache() {
	removed, err := d.cache.Sweep()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Download cache sweep failed")
		return
	}
	d.metrics.CacheSweptTotal.Add(float64(removed))
	if removed > 0 {
		d.logger.Debug().Int("removed", removed).Msg("Download cache swept")
	}
	d.reportStats()
}

// reportStats refreshes size gauges.
func (d *Daemon) reportStats() {
	d.metrics.DedupEntries.Set(float64(d.engine.Processed().Len()))
	d.metrics.PluginsLoaded.Set(float64(d.loader.Registry().Len()))

	if n, err := d.cache.Len(); err == nil {
		d.metrics.CacheEntries.Set(float64(n))
	}
}
