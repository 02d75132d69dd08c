// internal/model/schedule_entry.go
package model

import "time"

const (
    EntryPending    = "PENDING"
    EntryInProgress = "IN_PROGRESS"
    EntrySent       = "SENT"
    EntryError      = "ERROR"
)

// StaleClaimReason marks an ERROR entry whose claim expired mid-send. The
// mail may already be out, so such entries are never requeued.
const StaleClaimReason = "claim expired before completion, send outcome unknown"

// ScheduleEntry is one planned send.
type ScheduleEntry struct {
    ID                int        `db:"id" json:"id"`
    CampaignID        int        `db:"campaign_id" json:"campaign_id"`
    CampaignLeadID    int        `db:"campaign_lead_id" json:"campaign_lead_id"`
    LeadID            int        `db:"lead_id" json:"lead_id"`
    SenderID          int        `db:"sender_id" json:"sender_id"`
    ScheduledFor      time.Time  `db:"scheduled_for" json:"scheduled_for"`
    Status            string     `db:"status" json:"status"`
    TrackingID        string     `db:"tracking_id" json:"tracking_id"`
    ErrorMessage      string     `db:"error_message" json:"error_message,omitempty"`
    ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
    Attempts          int        `db:"attempts" json:"attempts"`
    ClaimedAt         *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
    SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
    CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// QueueStats counts schedule entries per status.
type QueueStats struct {
    Pending    int `json:"pending"`
    InProgress int `json:"in_progress"`
    Sent       int `json:"sent"`
    Error      int `json:"error"`
}
