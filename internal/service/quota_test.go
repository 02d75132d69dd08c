package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

func TestRemainingQuota(t *testing.T) {
	cases := []struct {
		name        string
		leadsPerDay int
		senders     int
		quota       int
		globalSent  int
		globalSched int
		scheduled   int
		sent        int
		want        int
	}{
		{"share below quota", 10, 3, 20, 0, 0, 0, 0, 4},
		{"quota below share", 100, 2, 20, 0, 0, 0, 0, 20},
		{"reservations count", 10, 2, 20, 0, 0, 3, 0, 2},
		{"sent beyond reservations", 10, 2, 20, 0, 0, 1, 4, 1},
		{"global headroom caps", 10, 1, 20, 18, 0, 0, 0, 2},
		{"never negative", 4, 2, 20, 0, 0, 5, 0, 0},
		{"global quota used elsewhere", 10, 1, 5, 7, 0, 0, 0, 0},
		{"reserved in another campaign", 10, 1, 5, 0, 4, 0, 0, 1},
		{"sent exceeds global reservations", 10, 1, 5, 3, 1, 0, 0, 2},
		{"no senders", 10, 0, 20, 0, 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cs := model.CampaignSender{
				EmailsScheduledToday: tc.scheduled,
				EmailsSentToday:      tc.sent,
				Sender: model.Sender{
					DailyQuota:           tc.quota,
					EmailsSentToday:      tc.globalSent,
					EmailsScheduledToday: tc.globalSched,
				},
			}
			got := service.RemainingQuota(cs, &model.Campaign{LeadsPerDay: tc.leadsPerDay}, tc.senders)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSlotsKeepSenderOrder(t *testing.T) {
	q := &service.QuotaTracker{}
	senders := []model.CampaignSender{
		{SenderID: 1, Sender: model.Sender{DailyQuota: 1}},
		{SenderID: 2, Sender: model.Sender{DailyQuota: 20}},
	}
	slots := q.Slots(&model.Campaign{LeadsPerDay: 10}, senders)
	assert.Equal(t, []service.Slot{{SenderID: 1, Remaining: 1}, {SenderID: 2, Remaining: 5}}, slots)
}
