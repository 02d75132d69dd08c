package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/controller"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

// --- Mock Repositories ---

type MockCampaignRepo struct {
	repository.CampaignRepositoryInterface
	campaigns []*model.Campaign
}

func (m *MockCampaignRepo) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	var filtered []*model.Campaign
	for _, c := range m.campaigns {
		if status != "" && c.Status != status {
			continue
		}
		filtered = append(filtered, c)
	}
	total := len(filtered)

	start := offset
	end := offset + limit
	if start > total {
		return []*model.Campaign{}, total, nil
	}
	if end > total {
		end = total
	}
	return filtered[start:end], total, nil
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

type MockLeadRepo struct {
	repository.LeadRepositoryInterface
}

func (m *MockLeadRepo) CountByStatus(ctx context.Context, campaignID int) (map[string]int, error) {
	return map[string]int{model.LeadPending: 3, model.LeadProcessed: 2}, nil
}

type MockSenderRepo struct {
	repository.SenderRepositoryInterface
}

func (m *MockSenderRepo) GetCampaignSenders(ctx context.Context, campaignID int) ([]model.CampaignSender, error) {
	return []model.CampaignSender{
		{CampaignID: campaignID, SenderID: 1, EmailsScheduledToday: 1, Sender: model.Sender{ID: 1, DailyQuota: 5}},
	}, nil
}

type MockScheduleRepo struct {
	repository.ScheduleRepositoryInterface
}

func (m *MockScheduleRepo) ListByCampaign(ctx context.Context, campaignID, limit int) ([]*model.ScheduleEntry, error) {
	return []*model.ScheduleEntry{{ID: 9, CampaignID: campaignID, Status: model.EntrySent}}, nil
}

func newController(campaigns ...*model.Campaign) *controller.CampaignController {
	return &controller.CampaignController{
		CampaignService: &service.CampaignService{
			CampaignRepo: &MockCampaignRepo{campaigns: campaigns},
			LeadRepo:     &MockLeadRepo{},
			SenderRepo:   &MockSenderRepo{},
			ScheduleRepo: &MockScheduleRepo{},
			Log:          zerolog.Nop(),
		},
		Log: zerolog.Nop(),
	}
}

// --- Test Functions ---

func TestListCampaignsPaginationAndFiltering(t *testing.T) {
	ctrl := newController(
		&model.Campaign{ID: 1, Name: "A", Status: model.CampaignActive},
		&model.Campaign{ID: 2, Name: "B", Status: model.CampaignPaused},
		&model.Campaign{ID: 3, Name: "C", Status: model.CampaignActive},
		&model.Campaign{ID: 4, Name: "D", Status: model.CampaignActive},
	)

	req := httptest.NewRequest("GET", "/campaigns?page=1&page_size=2&status=ACTIVE", nil)
	w := httptest.NewRecorder()
	ctrl.ListCampaigns(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(res.Data) != 2 {
		t.Errorf("expected 2 campaigns, got %d", len(res.Data))
	}
	for _, c := range res.Data {
		if c.Status != model.CampaignActive {
			t.Errorf("expected only ACTIVE campaigns, got %s", c.Status)
		}
	}
	if res.Pagination["total_count"] != 3 {
		t.Errorf("expected total_count 3, got %d", res.Pagination["total_count"])
	}
	if res.Pagination["total_pages"] != 2 {
		t.Errorf("expected total_pages 2, got %d", res.Pagination["total_pages"])
	}
}

func TestGetCampaignSchedule(t *testing.T) {
	ctrl := newController(&model.Campaign{ID: 7, Name: "Spring", LeadsPerDay: 4})

	r := chi.NewRouter()
	r.Get("/campaigns/{id}/schedule", ctrl.GetCampaignSchedule)

	req := httptest.NewRequest("GET", "/campaigns/7/schedule", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res service.CampaignScheduleDetails
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.Campaign.ID != 7 {
		t.Errorf("expected campaign 7, got %d", res.Campaign.ID)
	}
	if res.LeadStats[model.LeadPending] != 3 {
		t.Errorf("expected 3 pending leads, got %d", res.LeadStats[model.LeadPending])
	}
	if len(res.Senders) != 1 || res.Senders[0].Remaining != 3 {
		t.Errorf("expected one sender with 3 remaining, got %+v", res.Senders)
	}
	if len(res.RecentEntries) != 1 {
		t.Errorf("expected 1 recent entry, got %d", len(res.RecentEntries))
	}
}

func TestGetCampaignScheduleErrors(t *testing.T) {
	ctrl := newController(&model.Campaign{ID: 7})

	r := chi.NewRouter()
	r.Get("/campaigns/{id}/schedule", ctrl.GetCampaignSchedule)

	tests := []struct {
		path string
		want int
	}{
		{"/campaigns/abc/schedule", http.StatusBadRequest},
		{"/campaigns/0/schedule", http.StatusBadRequest},
		{"/campaigns/99/schedule", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}
