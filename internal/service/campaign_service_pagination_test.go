package service_test

import (
	"context"
	"testing"

	"github.com/truesoulcoder/dealpig-sub000/internal/model"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

func TestPagination(t *testing.T) {
	store := newMemStore()
	for id := 1; id <= 5; id++ {
		store.addCampaign(&model.Campaign{ID: id, Name: "C"})
	}
	svc := &service.CampaignService{CampaignRepo: fakeCampaigns{store}}
	ctx := context.Background()

	pageSize := 2

	page1, pagination1, _ := svc.ListCampaigns(ctx, 1, pageSize, "")
	page2, _, _ := svc.ListCampaigns(ctx, 2, pageSize, "")

	expectedTotal := 5
	if pagination1["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination1["total_count"])
	}
	if pagination1["total_pages"] != 3 {
		t.Errorf("expected 3 pages, got %d", pagination1["total_pages"])
	}

	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected full pages, got %d and %d", len(page1), len(page2))
	}

	// newest first
	if page1[0].ID <= page1[1].ID {
		t.Errorf("expected descending order in page 1")
	}
	if page2[0].ID <= page2[1].ID {
		t.Errorf("expected descending order in page 2")
	}

	if page1[1].ID == page2[0].ID {
		t.Errorf("duplicate entry between pages: %v", page1[1].ID)
	}

	page3, pagination3, _ := svc.ListCampaigns(ctx, 3, pageSize, "")
	if len(page3) != 1 {
		t.Errorf("expected last page to have 1 item, got %d", len(page3))
	}
	if pagination3["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination3["total_count"])
	}

	page4, _, _ := svc.ListCampaigns(ctx, 4, pageSize, "")
	if len(page4) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(page4))
	}
}

func TestPaginationClampsPageSize(t *testing.T) {
	store := newMemStore()
	store.addCampaign(&model.Campaign{ID: 1})
	store.addCampaign(&model.Campaign{ID: 2, Status: model.CampaignPaused})
	svc := &service.CampaignService{CampaignRepo: fakeCampaigns{store}}

	campaigns, pagination, err := svc.ListCampaigns(context.Background(), 0, 1000, model.CampaignActive)
	if err != nil {
		t.Fatal(err)
	}
	if pagination["page"] != 1 || pagination["page_size"] != 100 {
		t.Errorf("unexpected pagination %v", pagination)
	}
	if len(campaigns) != 1 || campaigns[0].ID != 1 {
		t.Errorf("expected only the active campaign, got %v", campaigns)
	}
}
