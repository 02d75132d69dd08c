package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	"github.com/truesoulcoder/dealpig-sub000/internal/metrics"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
)

// DailyReset zeroes the daily send counters once per calendar day in
// Location.
type DailyReset struct {
	Senders  repository.SenderRepositoryInterface
	Location *time.Location
	Clock    clock.Clock
	Log      zerolog.Logger
}

// ResetAll unconditionally zeroes every daily counter. Running it twice is
// harmless.
func (d *DailyReset) ResetAll(ctx context.Context) error {
	if err := d.Senders.ResetDailySenderStats(ctx); err != nil {
		return err
	}
	metrics.IncDailyReset()
	d.Log.Info().Msg("daily sender counters reset")
	return nil
}

// RunIfDue resets the counters when today's reset has not happened yet.
// The check and the reset share a transaction keyed by the persisted
// last-reset date, so restarts and repeated calls reset at most once a day.
func (d *DailyReset) RunIfDue(ctx context.Context) (bool, error) {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	day := d.Clock.Now().In(loc).Format(time.DateOnly)

	done, err := d.Senders.ResetDailySenderStatsOnce(ctx, day)
	if err != nil {
		return false, err
	}
	if done {
		metrics.IncDailyReset()
		d.Log.Info().Str("day", day).Msg("daily sender counters reset")
	}
	return done, nil
}
