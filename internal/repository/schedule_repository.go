package repository

import (
    "context"
    "database/sql"
    "sort"
    "time"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
)

type ScheduleRepositoryInterface interface {
    CreateEntry(ctx context.Context, entry *model.ScheduleEntry) error
    ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduleEntry, error)
    GetByID(ctx context.Context, id int) (*model.ScheduleEntry, error)
    MarkSent(ctx context.Context, entry *model.ScheduleEntry, providerMessageID string, at time.Time) error
    MarkError(ctx context.Context, entry *model.ScheduleEntry, reason string, at time.Time) error
    RequeueFailed(ctx context.Context, limit int, at time.Time) (int, error)
    RecoverStale(ctx context.Context, claimedBefore time.Time, reason string, at time.Time) (int, error)
    Stats(ctx context.Context) (model.QueueStats, error)
    ListByCampaign(ctx context.Context, campaignID, limit int) ([]*model.ScheduleEntry, error)
}

type ScheduleRepository struct {
    DB *sql.DB
}

const entryColumns = `id, campaign_id, campaign_lead_id, lead_id, sender_id, scheduled_for, status,
    tracking_id, error_message, provider_message_id, attempts, claimed_at, sent_at, created_at`

func scanEntry(row scanner) (*model.ScheduleEntry, error) {
    var e model.ScheduleEntry
    err := row.Scan(
        &e.ID, &e.CampaignID, &e.CampaignLeadID, &e.LeadID, &e.SenderID, &e.ScheduledFor, &e.Status,
        &e.TrackingID, &e.ErrorMessage, &e.ProviderMessageID, &e.Attempts, &e.ClaimedAt, &e.SentAt, &e.CreatedAt,
    )
    if err != nil {
        return nil, err
    }
    return &e, nil
}

// CreateEntry moves the campaign lead PENDING -> SCHEDULED and inserts the
// entry in one transaction. When the lead is no longer PENDING nothing is
// written and ErrEntryNotClaimed is returned.
func (r *ScheduleRepository) CreateEntry(ctx context.Context, entry *model.ScheduleEntry) error {
    now := time.Now().UTC()
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        ok, err := updateLeadStatus(ctx, tx, entry.CampaignLeadID, model.LeadPending, model.LeadScheduled, now)
        if err != nil {
            return err
        }
        if !ok {
            return appErrors.ErrEntryNotClaimed
        }
        return tx.QueryRowContext(ctx, `
            INSERT INTO schedule_entries
                (campaign_id, campaign_lead_id, lead_id, sender_id, scheduled_for, status, tracking_id, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING id`,
            entry.CampaignID, entry.CampaignLeadID, entry.LeadID, entry.SenderID,
            entry.ScheduledFor, model.EntryPending, entry.TrackingID, now,
        ).Scan(&entry.ID)
    })
    if err != nil {
        if appErrors.Is(err, appErrors.ErrEntryNotClaimed) {
            return err
        }
        if isUniqueViolation(err) {
            return appErrors.Wrapf(appErrors.ErrDuplicateTrackingID, "tracking id %s", entry.TrackingID)
        }
        return appErrors.Wrapf(err, "create schedule entry for campaign lead %d", entry.CampaignLeadID)
    }
    entry.Status = model.EntryPending
    entry.CreatedAt = now
    return nil
}

// ClaimDue flips up to limit due PENDING entries to IN_PROGRESS and returns
// them ordered by scheduled_for. Rows locked by a concurrent claimer are
// skipped, so an entry is handed to at most one caller.
func (r *ScheduleRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduleEntry, error) {
    rows, err := r.DB.QueryContext(ctx, `
        WITH due AS (
            SELECT id FROM schedule_entries
            WHERE status = $1 AND scheduled_for <= $2
            ORDER BY scheduled_for, id
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        UPDATE schedule_entries e
        SET status = $4, claimed_at = $2, attempts = e.attempts + 1, updated_at = $2
        FROM due
        WHERE e.id = due.id
        RETURNING e.id, e.campaign_id, e.campaign_lead_id, e.lead_id, e.sender_id, e.scheduled_for, e.status,
            e.tracking_id, e.error_message, e.provider_message_id, e.attempts, e.claimed_at, e.sent_at, e.created_at`,
        model.EntryPending, now, limit, model.EntryInProgress,
    )
    if err != nil {
        return nil, appErrors.Wrap(err, "claim due entries")
    }
    defer rows.Close()

    entries := []*model.ScheduleEntry{}
    for rows.Next() {
        e, err := scanEntry(rows)
        if err != nil {
            return nil, appErrors.Wrap(err, "scan claimed entry")
        }
        entries = append(entries, e)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    // RETURNING does not preserve the CTE order.
    sort.Slice(entries, func(i, j int) bool {
        a, b := entries[i], entries[j]
        if !a.ScheduledFor.Equal(b.ScheduledFor) {
            return a.ScheduledFor.Before(b.ScheduledFor)
        }
        return a.ID < b.ID
    })
    return entries, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int) (*model.ScheduleEntry, error) {
    e, err := scanEntry(r.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM schedule_entries WHERE id=$1`, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, appErrors.Wrapf(err, "get schedule entry %d", id)
    }
    return e, nil
}

// ListByCampaign returns the campaign's most recent entries, newest schedule first.
func (r *ScheduleRepository) ListByCampaign(ctx context.Context, campaignID, limit int) ([]*model.ScheduleEntry, error) {
    rows, err := r.DB.QueryContext(ctx,
        `SELECT `+entryColumns+` FROM schedule_entries WHERE campaign_id=$1 ORDER BY scheduled_for DESC, id DESC LIMIT $2`,
        campaignID, limit,
    )
    if err != nil {
        return nil, appErrors.Wrapf(err, "list entries for campaign %d", campaignID)
    }
    defer rows.Close()

    entries := []*model.ScheduleEntry{}
    for rows.Next() {
        e, err := scanEntry(rows)
        if err != nil {
            return nil, appErrors.Wrap(err, "scan schedule entry")
        }
        entries = append(entries, e)
    }
    return entries, rows.Err()
}

// MarkSent finalizes a claimed entry and marks its lead PROCESSED. It fails
// with ErrEntryNotClaimed when the entry is not IN_PROGRESS.
func (r *ScheduleRepository) MarkSent(ctx context.Context, entry *model.ScheduleEntry, providerMessageID string, at time.Time) error {
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        res, err := tx.ExecContext(ctx, `
            UPDATE schedule_entries
            SET status = $3, provider_message_id = $4, sent_at = $5, updated_at = $5
            WHERE id = $1 AND status = $2`,
            entry.ID, model.EntryInProgress, model.EntrySent, providerMessageID, at,
        )
        if err != nil {
            return err
        }
        if n, err := res.RowsAffected(); err != nil {
            return err
        } else if n == 0 {
            return appErrors.ErrEntryNotClaimed
        }
        _, err = updateLeadStatus(ctx, tx, entry.CampaignLeadID, model.LeadScheduled, model.LeadProcessed, at)
        return err
    })
    if err != nil {
        if appErrors.Is(err, appErrors.ErrEntryNotClaimed) {
            return err
        }
        return appErrors.Wrapf(err, "mark entry %d sent", entry.ID)
    }
    entry.Status = model.EntrySent
    entry.ProviderMessageID = providerMessageID
    entry.SentAt = &at
    return nil
}

// MarkError records reason on a claimed entry and moves its lead to ERROR.
// The lead is never put back to PENDING here.
func (r *ScheduleRepository) MarkError(ctx context.Context, entry *model.ScheduleEntry, reason string, at time.Time) error {
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        res, err := tx.ExecContext(ctx, `
            UPDATE schedule_entries
            SET status = $3, error_message = $4, updated_at = $5
            WHERE id = $1 AND status = $2`,
            entry.ID, model.EntryInProgress, model.EntryError, reason, at,
        )
        if err != nil {
            return err
        }
        if n, err := res.RowsAffected(); err != nil {
            return err
        } else if n == 0 {
            return appErrors.ErrEntryNotClaimed
        }
        _, err = updateLeadStatus(ctx, tx, entry.CampaignLeadID, model.LeadScheduled, model.LeadError, at)
        return err
    })
    if err != nil {
        if appErrors.Is(err, appErrors.ErrEntryNotClaimed) {
            return err
        }
        return appErrors.Wrapf(err, "mark entry %d error", entry.ID)
    }
    entry.Status = model.EntryError
    entry.ErrorMessage = reason
    return nil
}

// RequeueFailed puts up to limit ERROR entries back to PENDING, due
// immediately, and returns their leads to SCHEDULED. Entries with a quota
// ledger row or a stale claim may have been delivered and are skipped.
func (r *ScheduleRepository) RequeueFailed(ctx context.Context, limit int, at time.Time) (int, error) {
    var n int
    err := r.DB.QueryRowContext(ctx, `
        WITH failed AS (
            SELECT s.id FROM schedule_entries s
            WHERE s.status = $1
              AND s.error_message <> $7
              AND NOT EXISTS (SELECT 1 FROM quota_ledger q WHERE q.schedule_entry_id = s.id)
            ORDER BY s.id
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        ), requeued AS (
            UPDATE schedule_entries e
            SET status = $3, error_message = '', claimed_at = NULL, scheduled_for = $4, updated_at = $4
            FROM failed
            WHERE e.id = failed.id
            RETURNING e.campaign_lead_id
        ), leads AS (
            UPDATE campaign_leads cl
            SET status = $5, updated_at = $4
            FROM requeued
            WHERE cl.id = requeued.campaign_lead_id AND cl.status = $6
            RETURNING cl.id
        )
        SELECT COUNT(*) FROM requeued`,
        model.EntryError, limit, model.EntryPending, at, model.LeadScheduled, model.LeadError,
        model.StaleClaimReason,
    ).Scan(&n)
    if err != nil {
        return 0, appErrors.Wrap(err, "requeue failed entries")
    }
    return n, nil
}

// RecoverStale marks IN_PROGRESS entries claimed before claimedBefore as
// ERROR. Their send outcome is unknown so they are not resent.
func (r *ScheduleRepository) RecoverStale(ctx context.Context, claimedBefore time.Time, reason string, at time.Time) (int, error) {
    var n int
    err := r.DB.QueryRowContext(ctx, `
        WITH stale AS (
            UPDATE schedule_entries
            SET status = $3, error_message = $4, updated_at = $5
            WHERE status = $1 AND claimed_at < $2
            RETURNING campaign_lead_id
        ), leads AS (
            UPDATE campaign_leads cl
            SET status = $6, updated_at = $5
            FROM stale
            WHERE cl.id = stale.campaign_lead_id AND cl.status = $7
            RETURNING cl.id
        )
        SELECT COUNT(*) FROM stale`,
        model.EntryInProgress, claimedBefore, model.EntryError, reason, at, model.LeadError, model.LeadScheduled,
    ).Scan(&n)
    if err != nil {
        return 0, appErrors.Wrap(err, "recover stale entries")
    }
    return n, nil
}

func (r *ScheduleRepository) Stats(ctx context.Context) (model.QueueStats, error) {
    var stats model.QueueStats
    rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM schedule_entries GROUP BY status`)
    if err != nil {
        return stats, appErrors.Wrap(err, "queue stats")
    }
    defer rows.Close()

    for rows.Next() {
        var status string
        var count int
        if err := rows.Scan(&status, &count); err != nil {
            return stats, appErrors.Wrap(err, "scan queue stats")
        }
        switch status {
        case model.EntryPending:
            stats.Pending = count
        case model.EntryInProgress:
            stats.InProgress = count
        case model.EntrySent:
            stats.Sent = count
        case model.EntryError:
            stats.Error = count
        }
    }
    return stats, rows.Err()
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)
