package service

import (
	"context"
	"time"

	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
)

// RemainingQuota is how many more entries the sender may take in this
// campaign today. The campaign share is ceil(leads_per_day / numSenders),
// capped by the sender's daily quota and by its global headroom. Global
// headroom counts reservations made today in every campaign, so a sender
// shared between campaigns is never scheduled past its daily quota.
func RemainingQuota(cs model.CampaignSender, c *model.Campaign, numSenders int) int {
	if numSenders <= 0 || c.LeadsPerDay <= 0 {
		return 0
	}
	share := (c.LeadsPerDay + numSenders - 1) / numSenders
	limit := min(cs.Sender.DailyQuota, share)
	used := max(cs.EmailsScheduledToday, cs.EmailsSentToday)
	globalUsed := max(cs.Sender.EmailsScheduledToday, cs.Sender.EmailsSentToday)
	remaining := min(limit-used, cs.Sender.DailyQuota-globalUsed)
	return max(remaining, 0)
}

// QuotaTracker applies counter changes through the sender store.
type QuotaTracker struct {
	Senders repository.SenderRepositoryInterface
}

// Slots computes the working quota for each sender, preserving order.
func (q *QuotaTracker) Slots(c *model.Campaign, senders []model.CampaignSender) []Slot {
	slots := make([]Slot, len(senders))
	for i, cs := range senders {
		slots[i] = Slot{SenderID: cs.SenderID, Remaining: RemainingQuota(cs, c, len(senders))}
	}
	return slots
}

// ReserveAfterSchedule counts newly created entries against the sender's
// campaign share and its global daily quota.
func (q *QuotaTracker) ReserveAfterSchedule(ctx context.Context, campaignID, senderID, count int) error {
	if count <= 0 {
		return nil
	}
	return q.Senders.ReserveCampaignQuota(ctx, campaignID, senderID, count)
}

// IncrementAfterSend adds a confirmed send to the campaign and global
// counters. Replays for the same entry are no-ops; the bool reports whether
// the counters moved.
func (q *QuotaTracker) IncrementAfterSend(ctx context.Context, entryID, senderID, campaignID, count int, at time.Time) (bool, error) {
	return q.Senders.UpdateSenderStats(ctx, entryID, campaignID, senderID, count, at)
}
