// internal/model/campaign.go
package model

import "time"

const (
    CampaignDraft     = "DRAFT"
    CampaignActive    = "ACTIVE"
    CampaignPaused    = "PAUSED"
    CampaignCompleted = "COMPLETED"
)

type Campaign struct {
    ID                 int        `db:"id" json:"id"`
    Name               string     `db:"name" json:"name"`
    Status             string     `db:"status" json:"status"`
    LeadsPerDay        int        `db:"leads_per_day" json:"leads_per_day"`
    StartTime          string     `db:"start_time" json:"start_time"` // HH:MM local
    EndTime            string     `db:"end_time" json:"end_time"`
    MinIntervalMinutes int        `db:"min_interval_minutes" json:"min_interval_minutes"`
    MaxIntervalMinutes int        `db:"max_interval_minutes" json:"max_interval_minutes"`
    LeadsWorked        int        `db:"leads_worked" json:"leads_worked"`
    Timezone           string     `db:"timezone" json:"timezone,omitempty"`
    SenderCursor       int        `db:"sender_cursor" json:"sender_cursor"`
    EmailSubject       string     `db:"email_subject" json:"email_subject,omitempty"`
    EmailBody          string     `db:"email_body" json:"email_body,omitempty"`
    AttachLOI          bool       `db:"attach_loi" json:"attach_loi"`
    TrackingEnabled    bool       `db:"tracking_enabled" json:"tracking_enabled"`
    CreatedAt          time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
