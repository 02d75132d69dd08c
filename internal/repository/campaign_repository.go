package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
)

type CampaignRepositoryInterface interface {
    ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
    GetByID(ctx context.Context, id int) (*model.Campaign, error)
    GetCampaigns(ctx context.Context, status string) ([]*model.Campaign, error)
    UpdateCampaignProgress(ctx context.Context, campaignID, scheduled, cursor int) error
}

type CampaignRepository struct {
    DB *sql.DB
}

const campaignColumns = `id, name, status, leads_per_day, start_time, end_time,
    min_interval_minutes, max_interval_minutes, leads_worked, timezone, sender_cursor,
    email_subject, email_body, attach_loi, tracking_enabled, created_at, updated_at`

func scanCampaign(row scanner) (*model.Campaign, error) {
    var c model.Campaign
    err := row.Scan(
        &c.ID, &c.Name, &c.Status, &c.LeadsPerDay, &c.StartTime, &c.EndTime,
        &c.MinIntervalMinutes, &c.MaxIntervalMinutes, &c.LeadsWorked, &c.Timezone, &c.SenderCursor,
        &c.EmailSubject, &c.EmailBody, &c.AttachLOI, &c.TrackingEnabled, &c.CreatedAt, &c.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    return &c, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
    row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
    c, err := scanCampaign(row)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCampaignNotFound(id)
        }
        return nil, appErrors.Wrapf(err, "get campaign %d", id)
    }
    return c, nil
}

// GetCampaigns returns every campaign in the given status, oldest first.
func (r *CampaignRepository) GetCampaigns(ctx context.Context, status string) ([]*model.Campaign, error) {
    rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE status=$1 ORDER BY id`, status)
    if err != nil {
        return nil, appErrors.Wrapf(err, "list %s campaigns", status)
    }
    defer rows.Close()

    campaigns := []*model.Campaign{}
    for rows.Next() {
        c, err := scanCampaign(rows)
        if err != nil {
            return nil, appErrors.Wrap(err, "scan campaign")
        }
        campaigns = append(campaigns, c)
    }
    return campaigns, rows.Err()
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
    campaigns := []*model.Campaign{}
    query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
    countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
    args := []interface{}{}
    argPos := 1

    if status != "" {
        filter := fmt.Sprintf(" AND status=$%d", argPos)
        query += filter
        countQuery += filter
        args = append(args, status)
        argPos++
    }

    var total int
    if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
        return nil, 0, appErrors.Wrap(err, "count campaigns")
    }

    query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
    if err != nil {
        return nil, 0, appErrors.Wrap(err, "list campaigns")
    }
    defer rows.Close()

    for rows.Next() {
        c, err := scanCampaign(rows)
        if err != nil {
            return nil, 0, appErrors.Wrap(err, "scan campaign")
        }
        campaigns = append(campaigns, c)
    }
    return campaigns, total, rows.Err()
}

// UpdateCampaignProgress adds scheduled to leads_worked server-side and stores
// the round-robin cursor for the next cycle.
func (r *CampaignRepository) UpdateCampaignProgress(ctx context.Context, campaignID, scheduled, cursor int) error {
    if scheduled < 0 {
        return appErrors.Newf("leads_worked cannot decrease (delta %d)", scheduled)
    }
    res, err := r.DB.ExecContext(ctx, `
        UPDATE campaigns
        SET leads_worked = leads_worked + $2, sender_cursor = $3, updated_at = $4
        WHERE id = $1`,
        campaignID, scheduled, cursor, time.Now().UTC(),
    )
    if err != nil {
        return appErrors.Wrapf(err, "update progress for campaign %d", campaignID)
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return appErrors.NewCampaignNotFound(campaignID)
    }
    return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
