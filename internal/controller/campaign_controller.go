// internal/controller/campaign_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"
    "github.com/rs/zerolog"

    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/service"
)

type CampaignController struct {
    CampaignService *service.CampaignService
    Log             zerolog.Logger
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
    // Parse query parameters
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    status := r.URL.Query().Get("status")

    campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
    if err != nil {
        c.Log.Error().Err(err).Msg("list campaigns")
        http.Error(w, "failed to fetch campaigns", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       campaigns,
        "pagination": pagination, // page, page_size, total_count, total_pages
    })
}

// GetCampaignSchedule returns lead counts, sender quotas and the latest
// schedule entries of one campaign.
func (c *CampaignController) GetCampaignSchedule(w http.ResponseWriter, r *http.Request) {
    id, err := strconv.Atoi(chi.URLParam(r, "id"))
    if err != nil || id < 1 {
        http.Error(w, "invalid campaign id", http.StatusBadRequest)
        return
    }

    details, err := c.CampaignService.GetCampaignScheduleDetails(r.Context(), id)
    if err != nil {
        var nf *appErrors.ErrCampaignNotFound
        if appErrors.As(err, &nf) {
            http.Error(w, nf.Error(), http.StatusNotFound)
            return
        }
        c.Log.Error().Err(err).Int("campaign_id", id).Msg("get campaign schedule")
        http.Error(w, "failed to fetch campaign schedule", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(details)
}
