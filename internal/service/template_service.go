// internal/service/template_service.go
package service

import (
    "math"
    "regexp"
    "strconv"
    "strings"
    "time"

    "github.com/truesoulcoder/dealpig-sub000/internal/mailer"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
)

const (
    defaultSubject = "Property at {{property_address}}"
    defaultBody    = `<p>Hi {{owner_first_name}},</p>
<p>I'm reaching out about your property at {{property_address}}, {{property_city}}, {{property_state}}.
We would like to make a cash offer of ${{offer_price}} with a closing date as early as {{closing_date}}.</p>
<p>Best regards,<br>{{sender_name}}<br>{{sender_title}}, {{company_name}}</p>`
    defaultLOI = `<h1>Letter of Intent</h1>
<p>Date: {{current_date}}</p>
<p>Property: {{property_address}}, {{property_city}}, {{property_state}} {{property_zip}}</p>
<p>Seller: {{owner_name}}</p>
<p>Purchase price: ${{offer_price}}. Earnest money: ${{earnest_money}}. Closing on or before {{closing_date}}.</p>
<p>This offer expires on {{expiration_date}}.</p>
<p>{{sender_name}}, {{sender_title}}<br>{{company_name}}</p>`
)

var placeholder = regexp.MustCompile(`\{\{(.*?)\}\}`)

// RenderTemplate replaces {{key}} placeholders. Unknown keys are left as-is.
func RenderTemplate(template string, data map[string]string) string {
    return placeholder.ReplaceAllStringFunc(template, func(m string) string {
        key := strings.TrimSpace(m[2 : len(m)-2])
        if v, ok := data[key]; ok {
            return v
        }
        return m
    })
}

// TemplateVars builds the placeholder values for one lead and sender.
func TemplateVars(lead *model.Lead, sender *model.Sender, now time.Time) map[string]string {
    first, last := splitName(lead.OwnerName)
    address := lead.PropertyAddress
    if address == "" {
        address = "your property"
    }
    return map[string]string{
        "property_address": address,
        "property_city":    lead.PropertyCity,
        "property_state":   lead.PropertyState,
        "property_zip":     lead.PropertyZip,
        "owner_name":       lead.OwnerName,
        "owner_first_name": first,
        "owner_last_name":  last,
        "contact_email":    lead.ContactEmail,
        "wholesale_value":  formatAmount(lead.WholesaleValue),
        "offer_price":      formatAmount(math.Round(lead.WholesaleValue * 0.9)),
        "earnest_money":    "2,500",
        "sender_name":      sender.Name,
        "sender_email":     sender.Email,
        "sender_title":     sender.Title,
        "company_name":     sender.CompanyName,
        "current_date":     now.Format("January 2, 2006"),
        "closing_date":     now.AddDate(0, 0, 30).Format("January 2, 2006"),
        "expiration_date":  now.AddDate(0, 0, 7).Format("January 2, 2006"),
    }
}

// Compose renders the campaign's subject and body for one schedule entry.
// Campaigns without templates get the default ones.
func Compose(c *model.Campaign, lead *model.Lead, sender *model.Sender, entry *model.ScheduleEntry, now time.Time) mailer.Message {
    vars := TemplateVars(lead, sender, now)

    subject, body := c.EmailSubject, c.EmailBody
    if strings.TrimSpace(subject) == "" {
        subject = defaultSubject
    }
    if strings.TrimSpace(body) == "" {
        body = defaultBody
    }

    msg := mailer.Message{
        To:      lead.ContactEmail,
        Subject: RenderTemplate(subject, vars),
        Body:    RenderTemplate(body, vars),
        Sender:  mailer.Identity{Name: sender.Name, Email: sender.Email},
    }
    if c.TrackingEnabled {
        msg.TrackingID = entry.TrackingID
    }
    return msg
}

// RenderLOI renders the letter of intent attached to campaign mail.
func RenderLOI(lead *model.Lead, sender *model.Sender, now time.Time) string {
    return RenderTemplate(defaultLOI, TemplateVars(lead, sender, now))
}

func splitName(name string) (string, string) {
    fields := strings.Fields(name)
    if len(fields) == 0 {
        return "", ""
    }
    return fields[0], strings.Join(fields[1:], " ")
}

// formatAmount renders whole dollars with thousands separators.
func formatAmount(v float64) string {
    n := int64(math.Round(v))
    neg := n < 0
    if neg {
        n = -n
    }
    s := strconv.FormatInt(n, 10)
    var b strings.Builder
    for i, r := range s {
        if i > 0 && (len(s)-i)%3 == 0 {
            b.WriteByte(',')
        }
        b.WriteRune(r)
    }
    if neg {
        return "-" + b.String()
    }
    return b.String()
}
