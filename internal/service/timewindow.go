package service

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
)

// Window is a validated campaign active-hours window.
type Window struct {
	Location *time.Location
	StartMin int // minutes since local midnight
	EndMin   int
	MinGap   int // jitter bounds, minutes
	MaxGap   int
}

// TimeWindow validates campaign windows and draws send times from them.
// Rand must be seeded by the caller; it is guarded by a mutex.
type TimeWindow struct {
	DefaultLocation *time.Location

	mu   sync.Mutex
	rand *rand.Rand
}

func NewTimeWindow(r *rand.Rand, defaultLoc *time.Location) *TimeWindow {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &TimeWindow{DefaultLocation: defaultLoc, rand: r}
}

// parseClock accepts HH:MM or HH:MM:SS and returns minutes since midnight.
// Seconds are dropped.
func parseClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}
	limits := []int{23, 59, 59}
	vals := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, false
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, false
		}
		vals[i] = v
	}
	return vals[0]*60 + vals[1], true
}

// Validate checks the campaign's window and jitter settings. Problems are
// reported as ConfigError and never corrected.
func (tw *TimeWindow) Validate(c *model.Campaign) (Window, error) {
	w := Window{Location: tw.DefaultLocation, MinGap: c.MinIntervalMinutes, MaxGap: c.MaxIntervalMinutes}

	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return w, &appErrors.ConfigError{CampaignID: c.ID, Field: "timezone", Reason: "unknown zone " + c.Timezone, Err: err}
		}
		w.Location = loc
	}

	var ok bool
	if w.StartMin, ok = parseClock(c.StartTime); !ok {
		return w, appErrors.NewConfigError(c.ID, "start_time", "cannot parse "+strconv.Quote(c.StartTime))
	}
	if w.EndMin, ok = parseClock(c.EndTime); !ok {
		return w, appErrors.NewConfigError(c.ID, "end_time", "cannot parse "+strconv.Quote(c.EndTime))
	}
	if w.StartMin >= w.EndMin {
		return w, appErrors.NewConfigError(c.ID, "window", "start_time must be before end_time, overnight windows are not supported")
	}
	if w.MinGap < 0 || w.MaxGap < 0 {
		return w, appErrors.NewConfigError(c.ID, "interval", "interval bounds must not be negative")
	}
	if w.MinGap > w.MaxGap {
		return w, appErrors.NewConfigError(c.ID, "interval",
			"min_interval_minutes "+strconv.Itoa(w.MinGap)+" exceeds max_interval_minutes "+strconv.Itoa(w.MaxGap))
	}
	return w, nil
}

// IsWithinWindow reports whether now falls inside the campaign's active
// hours, both ends inclusive, at minute resolution.
func (tw *TimeWindow) IsWithinWindow(c *model.Campaign, now time.Time) (bool, error) {
	w, err := tw.Validate(c)
	if err != nil {
		return false, err
	}
	local := now.In(w.Location)
	m := local.Hour()*60 + local.Minute()
	return w.StartMin <= m && m <= w.EndMin, nil
}

// NextSendTime draws a single send time for the window that contains or
// follows baseline.
func (tw *TimeWindow) NextSendTime(c *model.Campaign, baseline time.Time) (time.Time, error) {
	times, err := tw.SendTimes(c, baseline, 1)
	if err != nil {
		return time.Time{}, err
	}
	return times[0], nil
}

// SendTimes draws a chain of n send times for one sender. The first lands at
// a random offset into the window (never before baseline) plus jitter, the
// rest follow the previous one by jitter. The first offset range is shrunk by
// (n-1)*MaxGap so the chain fits the window. A link that would pass the end
// of the window by more than MaxGap restarts at the next day's window.
func (tw *TimeWindow) SendTimes(c *model.Campaign, baseline time.Time, n int) ([]time.Time, error) {
	w, err := tw.Validate(c)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	local := baseline.In(w.Location)
	day := midnight(local)
	lo := 0
	if m := local.Hour()*60 + local.Minute(); m > w.EndMin {
		day = day.AddDate(0, 0, 1)
	} else if m > w.StartMin {
		lo = m - w.StartMin
	}

	hi := (w.EndMin - w.StartMin) - (n-1)*w.MaxGap
	if hi <= lo {
		hi = lo + 1
	}

	times := make([]time.Time, 0, n)
	first := at(day, w.StartMin+lo+tw.rand.IntN(hi-lo)).Add(tw.jitter(w))
	times = append(times, first)

	for len(times) < n {
		next := times[len(times)-1].Add(tw.jitter(w))
		if next.After(at(day, w.EndMin+w.MaxGap)) {
			day = day.AddDate(0, 0, 1)
			next = at(day, w.StartMin).Add(tw.jitter(w))
		}
		times = append(times, next)
	}
	return times, nil
}

func (tw *TimeWindow) jitter(w Window) time.Duration {
	return time.Duration(w.MinGap+tw.rand.IntN(w.MaxGap-w.MinGap+1)) * time.Minute
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// at returns the wall clock time minutes after midnight on day.
func at(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, day.Location())
}
