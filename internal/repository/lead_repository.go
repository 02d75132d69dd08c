package repository

import (
    "context"
    "database/sql"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
)

// LeadRepositoryInterface defines the lead queries used by the scheduler and executor
type LeadRepositoryInterface interface {
    GetCampaignLeads(ctx context.Context, campaignID int, status string, limit int) ([]model.CampaignLead, error)
    GetLead(ctx context.Context, id int) (*model.Lead, error)
    CountByStatus(ctx context.Context, campaignID int) (map[string]int, error)
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
    DB *sql.DB
}

// GetCampaignLeads returns campaign leads in the given status in insertion
// order. A limit of zero or less means no limit.
func (r *LeadRepository) GetCampaignLeads(ctx context.Context, campaignID int, status string, limit int) ([]model.CampaignLead, error) {
    query := `
        SELECT id, campaign_id, lead_id, status, processed_at, created_at
        FROM campaign_leads
        WHERE campaign_id = $1 AND status = $2
        ORDER BY id`
    args := []any{campaignID, status}
    if limit > 0 {
        query += ` LIMIT $3`
        args = append(args, limit)
    }

    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, appErrors.Wrapf(err, "list %s leads for campaign %d", status, campaignID)
    }
    defer rows.Close()

    leads := []model.CampaignLead{}
    for rows.Next() {
        var l model.CampaignLead
        if err := rows.Scan(&l.ID, &l.CampaignID, &l.LeadID, &l.Status, &l.ProcessedAt, &l.CreatedAt); err != nil {
        return nil, appErrors.Wrap(err, "scan campaign lead")
        }
        leads = append(leads, l)
    }
    return leads, rows.Err()
}

// GetLead fetches a lead by ID; a missing lead is (nil, nil)
func (r *LeadRepository) GetLead(ctx context.Context, id int) (*model.Lead, error) {
    query := `
        SELECT id, property_address, property_city, property_state, property_zip,
               owner_name, contact_email, wholesale_value
        FROM leads
        WHERE id = $1`

    var l model.Lead
    err := r.DB.QueryRowContext(ctx, query, id).Scan(
        &l.ID, &l.PropertyAddress, &l.PropertyCity, &l.PropertyState, &l.PropertyZip,
        &l.OwnerName, &l.ContactEmail, &l.WholesaleValue,
    )
    if err != nil {
        if err == sql.ErrNoRows {
        return nil, nil
        }
        return nil, appErrors.Wrapf(err, "get lead %d", id)
    }
    return &l, nil
}

func (r *LeadRepository) CountByStatus(ctx context.Context, campaignID int) (map[string]int, error) {
    rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM campaign_leads WHERE campaign_id=$1 GROUP BY status`, campaignID)
    if err != nil {
        return nil, appErrors.Wrapf(err, "count leads for campaign %d", campaignID)
    }
    defer rows.Close()

    stats := map[string]int{
        model.LeadPending:   0,
        model.LeadScheduled: 0,
        model.LeadProcessed: 0,
        model.LeadError:     0,
    }
    for rows.Next() {
        var status string
        var count int
        if err := rows.Scan(&status, &count); err != nil {
        return nil, appErrors.Wrap(err, "scan lead count")
        }
        stats[status] = count
    }
    return stats, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
