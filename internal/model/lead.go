// internal/model/lead.go
package model

import "time"

const (
    LeadPending   = "PENDING"
    LeadScheduled = "SCHEDULED"
    LeadProcessed = "PROCESSED"
    LeadError     = "ERROR"
)

type Lead struct {
    ID              int     `db:"id" json:"id"`
    PropertyAddress string  `db:"property_address" json:"property_address"`
    PropertyCity    string  `db:"property_city" json:"property_city"`
    PropertyState   string  `db:"property_state" json:"property_state"`
    PropertyZip     string  `db:"property_zip" json:"property_zip"`
    OwnerName       string  `db:"owner_name" json:"owner_name"`
    ContactEmail    string  `db:"contact_email" json:"contact_email"`
    WholesaleValue  float64 `db:"wholesale_value" json:"wholesale_value"`
}

// CampaignLead tracks one lead's progress through a campaign.
type CampaignLead struct {
    ID          int        `db:"id" json:"id"`
    CampaignID  int        `db:"campaign_id" json:"campaign_id"`
    LeadID      int        `db:"lead_id" json:"lead_id"`
    Status      string     `db:"status" json:"status"`
    ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
    CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
