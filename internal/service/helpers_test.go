package service_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	"github.com/truesoulcoder/dealpig-sub000/internal/document"
	"github.com/truesoulcoder/dealpig-sub000/internal/mailer"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func newWindow(seed uint64) *service.TimeWindow {
	return service.NewTimeWindow(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), time.UTC)
}

// officeHours is a 09:00-17:00 New York campaign with 15-60 minute gaps.
func officeHours(id int) *model.Campaign {
	return &model.Campaign{
		ID:                 id,
		Name:               "Campaign",
		Status:             model.CampaignActive,
		LeadsPerDay:        10,
		StartTime:          "09:00",
		EndTime:            "17:00",
		MinIntervalMinutes: 15,
		MaxIntervalMinutes: 60,
		Timezone:           "America/New_York",
		TrackingEnabled:    true,
	}
}

func newScheduler(store *memStore, clk clock.Clock) *service.CampaignScheduler {
	return &service.CampaignScheduler{
		Campaigns: fakeCampaigns{store},
		Senders:   fakeSenders{store},
		Leads:     fakeLeads{store},
		Schedule:  fakeSchedule{store},
		Quota:     &service.QuotaTracker{Senders: fakeSenders{store}},
		Assigner:  &service.Assigner{Window: newWindow(42)},
		Clock:     clk,
		Log:       zerolog.Nop(),
	}
}

type fakeDocs struct {
	ok    bool
	calls int
}

func (d *fakeDocs) Generate(ctx context.Context, p document.Params) (string, bool) {
	d.calls++
	if !d.ok {
		return "", false
	}
	return "/tmp/loi.html", true
}

func newExecutor(store *memStore, clk clock.Clock, m mailer.Sender, docs document.Generator) *service.ScheduleExecutor {
	return &service.ScheduleExecutor{
		Schedule:  fakeSchedule{store},
		Campaigns: fakeCampaigns{store},
		Leads:     fakeLeads{store},
		Senders:   fakeSenders{store},
		Quota:     &service.QuotaTracker{Senders: fakeSenders{store}},
		Mailer:    m,
		Documents: docs,
		Clock:     clk,
		Log:       zerolog.Nop(),
	}
}
