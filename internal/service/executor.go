package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	"github.com/truesoulcoder/dealpig-sub000/internal/document"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/mailer"
	"github.com/truesoulcoder/dealpig-sub000/internal/metrics"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/queue"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
)

// StaleClaimReason is recorded on entries whose claim expired mid-send.
const StaleClaimReason = model.StaleClaimReason

// ScheduleExecutor sends due schedule entries, each at most once.
type ScheduleExecutor struct {
	Schedule  repository.ScheduleRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Senders   repository.SenderRepositoryInterface
	Quota     *QuotaTracker
	Mailer    mailer.Sender
	Documents document.Generator
	Clock     clock.Clock
	Log       zerolog.Logger

	// optional
	Pacer  *Pacer
	Events queue.Queue
}

type ExecResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// ProcessDue claims up to limit due entries and works through them in
// scheduled order. Entries are claimed before any send, so a concurrent or
// repeated pass never sees them again.
func (e *ScheduleExecutor) ProcessDue(ctx context.Context, limit int) (ExecResult, error) {
	var res ExecResult
	entries, err := e.Schedule.ClaimDue(ctx, e.Clock.Now(), limit)
	if err != nil {
		return res, err
	}
	res.Claimed = len(entries)
	if len(entries) == 0 {
		return res, nil
	}

	attempted := false
	for _, entry := range entries {
		if e.process(ctx, entry, &attempted) {
			res.Sent++
		} else {
			res.Failed++
		}
	}

	e.Log.Info().Int("claimed", res.Claimed).Int("sent", res.Sent).Int("failed", res.Failed).Msg("executor batch finished")
	return res, nil
}

// process reports whether the entry was sent. It never panics.
func (e *ScheduleExecutor) process(ctx context.Context, entry *model.ScheduleEntry, attempted *bool) (sent bool) {
	log := e.Log.With().
		Int("entry_id", entry.ID).
		Int("campaign_id", entry.CampaignID).
		Int("lead_id", entry.LeadID).
		Int("sender_id", entry.SenderID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("entry processing panicked")
			e.fail(ctx, log, entry, fmt.Sprintf("internal error: %v", r))
			sent = false
		}
	}()

	c, err := e.Campaigns.GetByID(ctx, entry.CampaignID)
	if err != nil {
		return e.fail(ctx, log, entry, "load campaign: "+err.Error())
	}
	lead, err := e.Leads.GetLead(ctx, entry.LeadID)
	if err != nil {
		return e.fail(ctx, log, entry, "load lead: "+err.Error())
	}
	if lead == nil {
		return e.fail(ctx, log, entry, "lead not found")
	}
	if lead.ContactEmail == "" {
		return e.fail(ctx, log, entry, "lead has no contact email")
	}
	sender, err := e.Senders.GetSender(ctx, entry.SenderID)
	if err != nil {
		return e.fail(ctx, log, entry, "load sender: "+err.Error())
	}
	if sender == nil {
		return e.fail(ctx, log, entry, "sender not found")
	}

	now := e.Clock.Now()
	msg := Compose(c, lead, sender, entry, now)
	if c.AttachLOI {
		path, ok := e.Documents.Generate(ctx, document.Params{
			CampaignID: c.ID,
			LeadID:     lead.ID,
			Content:    RenderLOI(lead, sender, now),
		})
		if !ok {
			return e.fail(ctx, log, entry, appErrors.ErrDocumentGeneration.Error())
		}
		msg.AttachmentPath = path
	}

	if err := e.pace(ctx, *attempted); err != nil {
		return e.fail(ctx, log, entry, "cancelled before send: "+err.Error())
	}
	*attempted = true

	start := time.Now()
	receipt, err := e.Mailer.Send(ctx, msg)
	metrics.ObserveSend(time.Since(start))
	if err != nil {
		return e.fail(ctx, log, entry, err.Error())
	}

	// the mail is out; cancellation must not leave the entry claimed
	finalizeCtx := context.WithoutCancel(ctx)
	sentAt := e.Clock.Now()
	if err := e.Schedule.MarkSent(finalizeCtx, entry, receipt.ProviderMessageID, sentAt); err != nil {
		// the stale claim sweep will surface this entry
		log.Error().Err(err).Str("provider_message_id", receipt.ProviderMessageID).Msg("mark entry sent")
	}
	if _, err := e.Quota.IncrementAfterSend(finalizeCtx, entry.ID, entry.SenderID, entry.CampaignID, 1, sentAt); err != nil {
		log.Error().Err(err).Msg("apply send to sender counters")
	}

	metrics.IncSend(model.EntrySent)
	e.publish(ctx, log, entry, model.EntrySent, receipt.ProviderMessageID, "", sentAt)
	log.Info().Str("provider_message_id", receipt.ProviderMessageID).Msg("email sent")
	return true
}

func (e *ScheduleExecutor) pace(ctx context.Context, afterSend bool) error {
	if e.Pacer == nil {
		return ctx.Err()
	}
	if afterSend {
		return e.Pacer.Wait(ctx)
	}
	return e.Pacer.Reserve(ctx)
}

// fail records reason on the entry and moves its lead to ERROR. It always
// returns false.
func (e *ScheduleExecutor) fail(ctx context.Context, log zerolog.Logger, entry *model.ScheduleEntry, reason string) bool {
	at := e.Clock.Now()
	log.Warn().Str("reason", reason).Msg("email not sent")
	if err := e.Schedule.MarkError(context.WithoutCancel(ctx), entry, reason, at); err != nil {
		log.Error().Err(err).Msg("mark entry error")
	}
	metrics.IncSend(model.EntryError)
	e.publish(ctx, log, entry, model.EntryError, "", reason, at)
	return false
}

func (e *ScheduleExecutor) publish(ctx context.Context, log zerolog.Logger, entry *model.ScheduleEntry, status, providerID, reason string, at time.Time) {
	if e.Events == nil {
		return
	}
	ev := queue.DeliveryEvent{
		EntryID:           entry.ID,
		CampaignID:        entry.CampaignID,
		LeadID:            entry.LeadID,
		SenderID:          entry.SenderID,
		TrackingID:        entry.TrackingID,
		Status:            status,
		ProviderMessageID: providerID,
		Error:             reason,
		OccurredAt:        at,
	}
	if err := queue.PublishJSON(context.WithoutCancel(ctx), e.Events, queue.TopicEmailEvents, ev); err != nil {
		log.Warn().Err(err).Msg("publish delivery event")
	}
}

// RetryFailed re-queues up to limit ERROR entries for immediate sending.
// Entries that may already have been delivered stay in ERROR.
func (e *ScheduleExecutor) RetryFailed(ctx context.Context, limit int) (int, error) {
	n, err := e.Schedule.RequeueFailed(ctx, limit, e.Clock.Now())
	if err != nil {
		return 0, err
	}
	e.Log.Info().Int("requeued", n).Msg("failed entries requeued")
	return n, nil
}

// RecoverStale fails IN_PROGRESS entries claimed more than olderThan ago.
// They are not resent automatically.
func (e *ScheduleExecutor) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := e.Clock.Now()
	n, err := e.Schedule.RecoverStale(ctx, now.Add(-olderThan), StaleClaimReason, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.Log.Warn().Int("entries", n).Msg("stale claims marked as error")
	}
	return n, nil
}

func (e *ScheduleExecutor) Stats(ctx context.Context) (model.QueueStats, error) {
	return e.Schedule.Stats(ctx)
}
