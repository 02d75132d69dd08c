package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/metrics"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
)

// Locker guards a scheduling cycle across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Campaign cycle outcomes.
const (
	OutcomeScheduled   = "scheduled"
	OutcomeOutOfWindow = "out_of_window"
	OutcomeNoLeads     = "no_leads"
	OutcomeNoCapacity  = "no_capacity"
	OutcomeConfigError = "config_error"
	OutcomeError       = "error"
)

// CampaignOutcome records what one campaign's cycle did.
type CampaignOutcome struct {
	CampaignID int    `json:"campaign_id"`
	Outcome    string `json:"outcome"`
	Scheduled  int    `json:"scheduled"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

type CycleResult struct {
	Scheduled int               `json:"scheduled"`
	Campaigns []CampaignOutcome `json:"campaigns"`
	// Skipped is set when another process held the cycle lock.
	Skipped bool `json:"skipped"`
}

// CampaignScheduler turns pending campaign leads into schedule entries.
type CampaignScheduler struct {
	Campaigns repository.CampaignRepositoryInterface
	Senders   repository.SenderRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Schedule  repository.ScheduleRepositoryInterface
	Quota     *QuotaTracker
	Assigner  *Assigner
	Clock     clock.Clock
	Log       zerolog.Logger

	// Locker is optional; without it only in-process guards apply.
	Locker  Locker
	LockTTL time.Duration

	NewTrackingID func() string
}

const schedulerLockKey = "campaign-scheduler"

// RunCycle processes every active campaign once. Failures are confined to
// their campaign and recorded in the result; only failing to list campaigns
// or to take the lock is returned as an error.
func (s *CampaignScheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{Campaigns: []CampaignOutcome{}}
	start := time.Now()
	defer func() { metrics.ObserveCycle(time.Since(start)) }()

	if s.Locker != nil {
		release, ok, err := s.Locker.TryLock(ctx, schedulerLockKey, s.LockTTL)
		if err != nil {
			return result, err
		}
		if !ok {
			s.Log.Info().Msg("scheduling cycle already running elsewhere, skipping")
			result.Skipped = true
			return result, nil
		}
		defer release()
	}

	campaigns, err := s.Campaigns.GetCampaigns(ctx, model.CampaignActive)
	if err != nil {
		return result, appErrors.Wrap(err, "fetch active campaigns")
	}

	for _, c := range campaigns {
		out := s.runCampaign(ctx, c)
		metrics.IncCampaignOutcome(out.Outcome)
		result.Scheduled += out.Scheduled
		result.Campaigns = append(result.Campaigns, out)
	}

	s.Log.Info().
		Int("campaigns", len(campaigns)).
		Int("scheduled", result.Scheduled).
		Msg("scheduling cycle finished")
	return result, nil
}

// runCampaign never panics; a panic becomes an error outcome.
func (s *CampaignScheduler) runCampaign(ctx context.Context, c *model.Campaign) (out CampaignOutcome) {
	out.CampaignID = c.ID
	log := s.Log.With().Int("campaign_id", c.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			out.Outcome = OutcomeError
			out.Err = appErrors.Newf("panic: %v", r)
			out.Error = out.Err.Error()
			log.Error().Interface("panic", r).Msg("campaign scheduling panicked")
		}
	}()

	scheduled, failed, outcome, err := s.scheduleCampaign(ctx, c, log)
	out.Scheduled, out.Failed, out.Outcome, out.Err = scheduled, failed, outcome, err
	if err != nil {
		out.Error = err.Error()
		if appErrors.IsConfigError(err) {
			out.Outcome = OutcomeConfigError
			log.Warn().Err(err).Msg("campaign configuration error, skipping")
		} else {
			out.Outcome = OutcomeError
			log.Error().Err(err).Msg("campaign scheduling failed")
		}
	}
	return out
}

func (s *CampaignScheduler) scheduleCampaign(ctx context.Context, c *model.Campaign, log zerolog.Logger) (int, int, string, error) {
	now := s.Clock.Now()

	inWindow, err := s.Assigner.Window.IsWithinWindow(c, now)
	if err != nil {
		return 0, 0, "", err
	}
	if !inWindow {
		log.Debug().Msg("outside active window")
		return 0, 0, OutcomeOutOfWindow, nil
	}

	senders, err := s.Senders.GetCampaignSenders(ctx, c.ID)
	if err != nil {
		return 0, 0, "", err
	}
	if len(senders) == 0 {
		return 0, 0, "", &appErrors.ConfigError{CampaignID: c.ID, Field: "senders", Reason: "none attached", Err: appErrors.ErrNoSenders}
	}

	if c.LeadsPerDay <= 0 {
		return 0, 0, OutcomeNoCapacity, nil
	}

	leads, err := s.Leads.GetCampaignLeads(ctx, c.ID, model.LeadPending, c.LeadsPerDay)
	if err != nil {
		return 0, 0, "", err
	}
	if len(leads) == 0 {
		log.Debug().Msg("no pending leads")
		return 0, 0, OutcomeNoLeads, nil
	}

	slots := s.Quota.Slots(c, senders)
	assignment, err := s.Assigner.Assign(c, leads, slots, c.SenderCursor, now)
	if err != nil {
		return 0, 0, "", err
	}
	if len(assignment.Pairs) == 0 {
		log.Info().Int("pending", len(leads)).Msg("all senders exhausted for today")
		return 0, 0, OutcomeNoCapacity, nil
	}

	scheduled, failed := 0, 0
	perSender := map[int]int{}
	for _, p := range assignment.Pairs {
		entry := &model.ScheduleEntry{
			CampaignID:     c.ID,
			CampaignLeadID: p.Lead.ID,
			LeadID:         p.Lead.LeadID,
			SenderID:       p.SenderID,
			ScheduledFor:   p.ScheduledFor,
			TrackingID:     s.trackingID(),
		}
		if err := s.Schedule.CreateEntry(ctx, entry); err != nil {
			failed++
			ev := log.Warn()
			if !appErrors.Is(err, appErrors.ErrEntryNotClaimed) {
				ev = log.Error()
			}
			ev.Err(err).Int("lead_id", p.Lead.LeadID).Int("sender_id", p.SenderID).Msg("could not schedule lead")
			continue
		}
		scheduled++
		perSender[p.SenderID]++
	}

	// reservations first so a failed progress update cannot free quota
	for _, cs := range senders {
		n := perSender[cs.SenderID]
		if err := s.Quota.ReserveAfterSchedule(ctx, c.ID, cs.SenderID, n); err != nil {
			log.Error().Err(err).Int("sender_id", cs.SenderID).Int("count", n).Msg("reserve sender quota")
		}
	}
	if err := s.Campaigns.UpdateCampaignProgress(ctx, c.ID, scheduled, assignment.NextCursor); err != nil {
		return scheduled, failed, OutcomeScheduled, appErrors.Wrap(err, "update campaign progress")
	}

	metrics.AddEntriesScheduled(scheduled)
	log.Info().Int("scheduled", scheduled).Int("failed", failed).Int("cursor", assignment.NextCursor).Msg("campaign scheduled")
	return scheduled, failed, OutcomeScheduled, nil
}

func (s *CampaignScheduler) trackingID() string {
	if s.NewTrackingID != nil {
		return s.NewTrackingID()
	}
	return uuid.NewString()
}

func (o CampaignOutcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("campaign %d: %s (%v)", o.CampaignID, o.Outcome, o.Err)
	}
	return fmt.Sprintf("campaign %d: %s, %d scheduled", o.CampaignID, o.Outcome, o.Scheduled)
}
