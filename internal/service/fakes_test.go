package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
)

// memStore is an in-memory stand-in for the Postgres repositories. Every
// mutation is conditional, like the SQL it replaces.
type memStore struct {
	mu sync.Mutex

	campaigns       map[int]*model.Campaign
	senders         map[int]*model.Sender
	campaignSenders []*model.CampaignSender
	leads           map[int]*model.Lead
	campaignLeads   []*model.CampaignLead
	entries         []*model.ScheduleEntry
	ledger          map[int]bool
	lastReset       string
	resets          int

	failSenders  map[int]error
	panicSenders map[int]bool
	failCreate   map[int]error
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:    map[int]*model.Campaign{},
		senders:      map[int]*model.Sender{},
		leads:        map[int]*model.Lead{},
		ledger:       map[int]bool{},
		failSenders:  map[int]error{},
		panicSenders: map[int]bool{},
		failCreate:   map[int]error{},
	}
}

func (s *memStore) addCampaign(c *model.Campaign) *model.Campaign {
	if c.Status == "" {
		c.Status = model.CampaignActive
	}
	s.campaigns[c.ID] = c
	return c
}

func (s *memStore) addSender(campaignID int, snd *model.Sender) {
	if _, ok := s.senders[snd.ID]; !ok {
		s.senders[snd.ID] = snd
	}
	s.campaignSenders = append(s.campaignSenders, &model.CampaignSender{CampaignID: campaignID, SenderID: snd.ID})
}

// addLeads attaches n PENDING leads with ids starting at first.
func (s *memStore) addLeads(campaignID, first, n int) {
	for i := 0; i < n; i++ {
		id := first + i
		if _, ok := s.leads[id]; !ok {
			s.leads[id] = &model.Lead{
				ID:              id,
				PropertyAddress: "12 Elm St",
				PropertyCity:    "Austin",
				PropertyState:   "TX",
				OwnerName:       "Pat Owner",
				ContactEmail:    "owner@example.com",
				WholesaleValue:  200000,
			}
		}
		s.campaignLeads = append(s.campaignLeads, &model.CampaignLead{
			ID:         len(s.campaignLeads) + 1,
			CampaignID: campaignID,
			LeadID:     id,
			Status:     model.LeadPending,
		})
	}
}

func (s *memStore) campaignLead(id int) *model.CampaignLead {
	for _, cl := range s.campaignLeads {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}

func (s *memStore) entry(id int) *model.ScheduleEntry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *memStore) leadStatuses(campaignID int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, cl := range s.campaignLeads {
		if cl.CampaignID == campaignID {
			out[cl.Status]++
		}
	}
	return out
}

func (s *memStore) entriesFor(campaignID int) []model.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ScheduleEntry
	for _, e := range s.entries {
		if e.CampaignID == campaignID {
			out = append(out, *e)
		}
	}
	return out
}

// --- campaigns ---

type fakeCampaigns struct{ *memStore }

func (f fakeCampaigns) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*model.Campaign
	for _, c := range f.campaigns {
		if status == "" || c.Status == status {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	return all[offset:min(offset+limit, total)], total, nil
}

func (f fakeCampaigns) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (f fakeCampaigns) GetCampaigns(ctx context.Context, status string) ([]*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Campaign
	for _, c := range f.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCampaigns) UpdateCampaignProgress(ctx context.Context, campaignID, scheduled, cursor int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.LeadsWorked += scheduled
	c.SenderCursor = cursor
	return nil
}

// --- senders ---

type fakeSenders struct{ *memStore }

func (f fakeSenders) GetCampaignSenders(ctx context.Context, campaignID int) ([]model.CampaignSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicSenders[campaignID] {
		panic("sender table exploded")
	}
	if err := f.failSenders[campaignID]; err != nil {
		return nil, err
	}
	out := []model.CampaignSender{}
	for _, cs := range f.campaignSenders {
		if cs.CampaignID == campaignID {
			cp := *cs
			cp.Sender = *f.senders[cs.SenderID]
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out, nil
}

func (f fakeSenders) GetSender(ctx context.Context, id int) (*model.Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snd, ok := f.senders[id]
	if !ok {
		return nil, nil
	}
	cp := *snd
	return &cp, nil
}

func (f fakeSenders) ReserveCampaignQuota(ctx context.Context, campaignID, senderID, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cs := range f.campaignSenders {
		if cs.CampaignID == campaignID && cs.SenderID == senderID {
			cs.EmailsScheduledToday += count
			f.senders[senderID].EmailsScheduledToday += count
		}
	}
	return nil
}

func (f fakeSenders) UpdateSenderStats(ctx context.Context, entryID, campaignID, senderID, count int, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.ledger[entryID] {
		return false, nil
	}
	f.ledger[entryID] = true
	snd := f.senders[senderID]
	snd.EmailsSentToday += count
	snd.TotalEmailsSent += count
	snd.LastSentAt = &at
	for _, cs := range f.campaignSenders {
		if cs.CampaignID == campaignID && cs.SenderID == senderID {
			cs.EmailsSentToday += count
			cs.TotalEmailsSent += count
		}
	}
	return true, nil
}

func (f fakeSenders) zero() {
	for _, snd := range f.senders {
		snd.EmailsSentToday = 0
		snd.EmailsScheduledToday = 0
	}
	for _, cs := range f.campaignSenders {
		cs.EmailsSentToday = 0
		cs.EmailsScheduledToday = 0
	}
	f.resets++
}

func (f fakeSenders) ResetDailySenderStats(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zero()
	return nil
}

func (f fakeSenders) ResetDailySenderStatsOnce(ctx context.Context, day string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastReset != "" && f.lastReset >= day {
		return false, nil
	}
	f.lastReset = day
	f.zero()
	return true, nil
}

// --- leads ---

type fakeLeads struct{ *memStore }

func (f fakeLeads) GetCampaignLeads(ctx context.Context, campaignID int, status string, limit int) ([]model.CampaignLead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.CampaignLead{}
	for _, cl := range f.campaignLeads {
		if cl.CampaignID == campaignID && cl.Status == status {
			out = append(out, *cl)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f fakeLeads) GetLead(ctx context.Context, id int) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (f fakeLeads) CountByStatus(ctx context.Context, campaignID int) (map[string]int, error) {
	return f.leadStatuses(campaignID), nil
}

// --- schedule entries ---

type fakeSchedule struct{ *memStore }

func (f fakeSchedule) CreateEntry(ctx context.Context, entry *model.ScheduleEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[entry.CampaignLeadID]; err != nil {
		return err
	}
	cl := f.campaignLead(entry.CampaignLeadID)
	if cl == nil || cl.Status != model.LeadPending {
		return appErrors.ErrEntryNotClaimed
	}
	cl.Status = model.LeadScheduled
	cp := *entry
	cp.ID = len(f.entries) + 1
	cp.Status = model.EntryPending
	f.entries = append(f.entries, &cp)
	entry.ID = cp.ID
	entry.Status = cp.Status
	return nil
}

func (f fakeSchedule) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*model.ScheduleEntry
	for _, e := range f.entries {
		if e.Status == model.EntryPending && !e.ScheduledFor.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(due[j].ScheduledFor)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*model.ScheduleEntry, len(due))
	for i, e := range due {
		e.Status = model.EntryInProgress
		e.Attempts++
		claimed := now
		e.ClaimedAt = &claimed
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (f fakeSchedule) GetByID(ctx context.Context, id int) (*model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entry(id)
	if e == nil {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f fakeSchedule) MarkSent(ctx context.Context, entry *model.ScheduleEntry, providerMessageID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	e := f.entry(entry.ID)
	if e == nil || e.Status != model.EntryInProgress {
		return appErrors.ErrEntryNotClaimed
	}
	e.Status = model.EntrySent
	e.ProviderMessageID = providerMessageID
	e.SentAt = &at
	if cl := f.campaignLead(e.CampaignLeadID); cl != nil && cl.Status == model.LeadScheduled {
		cl.Status = model.LeadProcessed
		cl.ProcessedAt = &at
	}
	return nil
}

func (f fakeSchedule) MarkError(ctx context.Context, entry *model.ScheduleEntry, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entry(entry.ID)
	if e == nil || e.Status != model.EntryInProgress {
		return appErrors.ErrEntryNotClaimed
	}
	e.Status = model.EntryError
	e.ErrorMessage = reason
	if cl := f.campaignLead(e.CampaignLeadID); cl != nil && cl.Status == model.LeadScheduled {
		cl.Status = model.LeadError
	}
	return nil
}

func (f fakeSchedule) RequeueFailed(ctx context.Context, limit int, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if n == limit {
			break
		}
		if e.Status != model.EntryError || e.ErrorMessage == model.StaleClaimReason || f.ledger[e.ID] {
			continue
		}
		e.Status = model.EntryPending
		e.ErrorMessage = ""
		e.ClaimedAt = nil
		e.ScheduledFor = at
		if cl := f.campaignLead(e.CampaignLeadID); cl != nil && cl.Status == model.LeadError {
			cl.Status = model.LeadScheduled
		}
		n++
	}
	return n, nil
}

func (f fakeSchedule) RecoverStale(ctx context.Context, claimedBefore time.Time, reason string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Status == model.EntryInProgress && e.ClaimedAt != nil && e.ClaimedAt.Before(claimedBefore) {
			e.Status = model.EntryError
			e.ErrorMessage = reason
			if cl := f.campaignLead(e.CampaignLeadID); cl != nil && cl.Status == model.LeadScheduled {
				cl.Status = model.LeadError
			}
			n++
		}
	}
	return n, nil
}

func (f fakeSchedule) Stats(ctx context.Context) (model.QueueStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st model.QueueStats
	for _, e := range f.entries {
		switch e.Status {
		case model.EntryPending:
			st.Pending++
		case model.EntryInProgress:
			st.InProgress++
		case model.EntrySent:
			st.Sent++
		case model.EntryError:
			st.Error++
		}
	}
	return st, nil
}

func (f fakeSchedule) ListByCampaign(ctx context.Context, campaignID, limit int) ([]*model.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.ScheduleEntry{}
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].CampaignID == campaignID {
			cp := *f.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
