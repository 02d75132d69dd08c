package repository

import (
    "context"
    "database/sql"
    "time"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
)

type SenderRepositoryInterface interface {
    GetCampaignSenders(ctx context.Context, campaignID int) ([]model.CampaignSender, error)
    GetSender(ctx context.Context, id int) (*model.Sender, error)
    ReserveCampaignQuota(ctx context.Context, campaignID, senderID, count int) error
    UpdateSenderStats(ctx context.Context, entryID, campaignID, senderID, count int, at time.Time) (bool, error)
    ResetDailySenderStats(ctx context.Context) error
    ResetDailySenderStatsOnce(ctx context.Context, day string) (bool, error)
}

type SenderRepository struct {
    DB *sql.DB
}


// GetCampaignSenders returns the campaign's senders ordered by sender id so
// round-robin positions are stable between cycles.
func (r *SenderRepository) GetCampaignSenders(ctx context.Context, campaignID int) ([]model.CampaignSender, error) {
    rows, err := r.DB.QueryContext(ctx, `
        SELECT cs.campaign_id, cs.sender_id, cs.emails_sent_today, cs.emails_scheduled_today, cs.total_emails_sent,
               s.id, s.name, s.email, s.title, s.company_name, s.daily_quota,
               s.emails_sent_today, s.emails_scheduled_today, s.total_emails_sent, s.last_sent_at
        FROM campaign_senders cs
        JOIN senders s ON s.id = cs.sender_id
        WHERE cs.campaign_id = $1
        ORDER BY s.id`, campaignID)
    if err != nil {
        return nil, appErrors.Wrapf(err, "list senders for campaign %d", campaignID)
    }
    defer rows.Close()

    senders := []model.CampaignSender{}
    for rows.Next() {
        var cs model.CampaignSender
        s := &cs.Sender
        if err := rows.Scan(
            &cs.CampaignID, &cs.SenderID, &cs.EmailsSentToday, &cs.EmailsScheduledToday, &cs.TotalEmailsSent,
            &s.ID, &s.Name, &s.Email, &s.Title, &s.CompanyName, &s.DailyQuota,
            &s.EmailsSentToday, &s.EmailsScheduledToday, &s.TotalEmailsSent, &s.LastSentAt,
        ); err != nil {
            return nil, appErrors.Wrap(err, "scan campaign sender")
        }
        senders = append(senders, cs)
    }
    return senders, rows.Err()
}

// GetSender fetches a sender by ID; a missing sender is (nil, nil)
func (r *SenderRepository) GetSender(ctx context.Context, id int) (*model.Sender, error) {
    var s model.Sender
    err := r.DB.QueryRowContext(ctx, `
        SELECT id, name, email, title, company_name, daily_quota,
               emails_sent_today, emails_scheduled_today, total_emails_sent, last_sent_at
        FROM senders WHERE id = $1`, id).Scan(
            &s.ID, &s.Name, &s.Email, &s.Title, &s.CompanyName, &s.DailyQuota,
            &s.EmailsSentToday, &s.EmailsScheduledToday, &s.TotalEmailsSent, &s.LastSentAt,
        )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, appErrors.Wrapf(err, "get sender %d", id)
    }
    return &s, nil
}

// ReserveCampaignQuota counts freshly scheduled entries against the sender's
// campaign share and its global daily quota. The global counter is shared by
// every campaign the sender belongs to.
func (r *SenderRepository) ReserveCampaignQuota(ctx context.Context, campaignID, senderID, count int) error {
    now := time.Now().UTC()
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        if _, err := tx.ExecContext(ctx, `
            UPDATE campaign_senders
            SET emails_scheduled_today = emails_scheduled_today + $3, updated_at = $4
            WHERE campaign_id = $1 AND sender_id = $2`,
            campaignID, senderID, count, now,
        ); err != nil {
            return err
        }
        _, err := tx.ExecContext(ctx, `
            UPDATE senders
            SET emails_scheduled_today = emails_scheduled_today + $2
            WHERE id = $1`,
            senderID, count,
        )
        return err
    })
    if err != nil {
        return appErrors.Wrapf(err, "reserve quota for sender %d in campaign %d", senderID, campaignID)
    }
    return nil
}

// UpdateSenderStats applies a confirmed send to the global and campaign
// counters. The ledger row keyed by entry id makes it apply at most once; the
// bool reports whether this call applied it.
func (r *SenderRepository) UpdateSenderStats(ctx context.Context, entryID, campaignID, senderID, count int, at time.Time) (bool, error) {
    applied := false
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        res, err := tx.ExecContext(ctx, `
            INSERT INTO quota_ledger (schedule_entry_id, campaign_id, sender_id, count, applied_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (schedule_entry_id) DO NOTHING`,
            entryID, campaignID, senderID, count, at,
        )
        if err != nil {
            return err
        }
        if n, err := res.RowsAffected(); err != nil || n == 0 {
            return err
        }

        if _, err := tx.ExecContext(ctx, `
            UPDATE senders
            SET emails_sent_today = emails_sent_today + $2,
                total_emails_sent = total_emails_sent + $2,
                last_sent_at = $3
            WHERE id = $1`,
            senderID, count, at,
        ); err != nil {
            return err
        }
        if _, err := tx.ExecContext(ctx, `
            UPDATE campaign_senders
            SET emails_sent_today = emails_sent_today + $3,
                total_emails_sent = total_emails_sent + $3,
                updated_at = $4
            WHERE campaign_id = $1 AND sender_id = $2`,
            campaignID, senderID, count, at,
        ); err != nil {
            return err
        }
        applied = true
        return nil
    })
    if err != nil {
        return false, appErrors.Wrapf(err, "apply send of entry %d to sender %d", entryID, senderID)
    }
    return applied, nil
}

// ResetDailySenderStats zeroes every daily counter. Rows already at zero are
// left untouched.
func (r *SenderRepository) ResetDailySenderStats(ctx context.Context) error {
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        return zeroDailyCounters(ctx, tx)
    })
    if err != nil {
        return appErrors.Wrap(err, "reset daily sender stats")
    }
    return nil
}

// ResetDailySenderStatsOnce advances the persisted last-reset date to day
// (YYYY-MM-DD) and zeroes the counters in the same transaction. It returns
// false without touching anything when day has already been reset.
func (r *SenderRepository) ResetDailySenderStatsOnce(ctx context.Context, day string) (bool, error) {
    reset := false
    err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
        res, err := tx.ExecContext(ctx, `
            INSERT INTO scheduler_state (name, last_reset_date, updated_at)
            VALUES ('daily_reset', $1::date, $2)
            ON CONFLICT (name) DO UPDATE
            SET last_reset_date = EXCLUDED.last_reset_date, updated_at = EXCLUDED.updated_at
            WHERE scheduler_state.last_reset_date IS NULL
               OR scheduler_state.last_reset_date < EXCLUDED.last_reset_date`,
            day, time.Now().UTC(),
        )
        if err != nil {
            return err
        }
        if n, err := res.RowsAffected(); err != nil || n == 0 {
            return err
        }
        if err := zeroDailyCounters(ctx, tx); err != nil {
            return err
        }
        reset = true
        return nil
    })
    if err != nil {
        return false, appErrors.Wrapf(err, "daily reset for %s", day)
    }
    return reset, nil
}

func zeroDailyCounters(ctx context.Context, q execer) error {
    if _, err := q.ExecContext(ctx, `
        UPDATE senders
        SET emails_sent_today = 0, emails_scheduled_today = 0
        WHERE emails_sent_today <> 0 OR emails_scheduled_today <> 0`,
    ); err != nil {
        return err
    }
    _, err := q.ExecContext(ctx, `
        UPDATE campaign_senders
        SET emails_sent_today = 0, emails_scheduled_today = 0, updated_at = $1
        WHERE emails_sent_today <> 0 OR emails_scheduled_today <> 0`,
        time.Now().UTC(),
    )
    return err
}

var _ SenderRepositoryInterface = (*SenderRepository)(nil)
