// internal/model/sender.go
package model

import "time"

// Sender is a mailbox identity able to send campaign mail.
type Sender struct {
    ID                   int        `db:"id" json:"id"`
    Name                 string     `db:"name" json:"name"`
    Email                string     `db:"email" json:"email"`
    Title                string     `db:"title" json:"title,omitempty"`
    CompanyName          string     `db:"company_name" json:"company_name,omitempty"`
    DailyQuota           int        `db:"daily_quota" json:"daily_quota"`
    EmailsSentToday      int        `db:"emails_sent_today" json:"emails_sent_today"`
    EmailsScheduledToday int        `db:"emails_scheduled_today" json:"emails_scheduled_today"` // all campaigns
    TotalEmailsSent      int        `db:"total_emails_sent" json:"total_emails_sent"`
    LastSentAt           *time.Time `db:"last_sent_at" json:"last_sent_at,omitempty"`
}

// CampaignSender binds a sender to a campaign with campaign-scoped counters.
// EmailsScheduledToday is the reservation taken when entries are created;
// the sent counters move only after a confirmed send.
type CampaignSender struct {
    CampaignID           int    `db:"campaign_id" json:"campaign_id"`
    SenderID             int    `db:"sender_id" json:"sender_id"`
    EmailsSentToday      int    `db:"emails_sent_today" json:"emails_sent_today"`
    EmailsScheduledToday int    `db:"emails_scheduled_today" json:"emails_scheduled_today"`
    TotalEmailsSent      int    `db:"total_emails_sent" json:"total_emails_sent"`
    Sender               Sender `json:"sender"`
}
