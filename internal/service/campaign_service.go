// internal/service/campaign_service.go
package service

import (
    "context"
    "time"

    "github.com/rs/zerolog"

    "github.com/truesoulcoder/dealpig-sub000/internal/clock"
    appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
    "github.com/truesoulcoder/dealpig-sub000/internal/model"
    "github.com/truesoulcoder/dealpig-sub000/internal/queue"
    "github.com/truesoulcoder/dealpig-sub000/internal/repository"
)

// Task names understood by the worker.
const (
    TaskScheduler    = "scheduler"
    TaskExecutor     = "executor"
    TaskDailyReset   = "daily_reset"
    TaskResetAll     = "reset_all"
    TaskRetryFailed  = "retry_failed"
    TaskRecoverStale = "recover_stale"
)

// Triggerable lists the tasks the admin API may request.
var Triggerable = map[string]bool{
    TaskScheduler:   true,
    TaskExecutor:    true,
    TaskResetAll:    true,
    TaskRetryFailed: true,
}

// CampaignService backs the admin API.
type CampaignService struct {
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
    SenderRepo   repository.SenderRepositoryInterface
    ScheduleRepo repository.ScheduleRepositoryInterface
    Queue        queue.Queue
    Clock        clock.Clock
    Log          zerolog.Logger
}

type CampaignScheduleDetails struct {
    Campaign      *model.Campaign        `json:"campaign"`
    LeadStats     map[string]int         `json:"lead_stats"`
    Senders       []SenderQuota          `json:"senders"`
    RecentEntries []*model.ScheduleEntry `json:"recent_entries"`
}

// SenderQuota is a campaign sender with its remaining quota for today.
type SenderQuota struct {
    model.CampaignSender
    Remaining int `json:"remaining_today"`
}

const recentEntryLimit = 50

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
    if err != nil {
        return nil, nil, err
    }

    campaigns := make([]model.Campaign, len(ptrs))
    for i, c := range ptrs {
        campaigns[i] = *c
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return campaigns, pagination, nil
}

// GetCampaignScheduleDetails returns a campaign with its lead counts, sender
// quotas and most recent schedule entries.
func (s *CampaignService) GetCampaignScheduleDetails(ctx context.Context, campaignID int) (*CampaignScheduleDetails, error) {
    campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
    if err != nil {
        return nil, err
    }

    stats, err := s.LeadRepo.CountByStatus(ctx, campaignID)
    if err != nil {
        return nil, err
    }

    senders, err := s.SenderRepo.GetCampaignSenders(ctx, campaignID)
    if err != nil {
        return nil, err
    }
    quotas := make([]SenderQuota, len(senders))
    for i, cs := range senders {
        quotas[i] = SenderQuota{CampaignSender: cs, Remaining: RemainingQuota(cs, campaign, len(senders))}
    }

    entries, err := s.ScheduleRepo.ListByCampaign(ctx, campaignID, recentEntryLimit)
    if err != nil {
        return nil, err
    }

    return &CampaignScheduleDetails{
        Campaign:      campaign,
        LeadStats:     stats,
        Senders:       quotas,
        RecentEntries: entries,
    }, nil
}

func (s *CampaignService) QueueStats(ctx context.Context) (model.QueueStats, error) {
    return s.ScheduleRepo.Stats(ctx)
}

// RetryFailed puts up to limit failed entries back in the queue.
func (s *CampaignService) RetryFailed(ctx context.Context, limit int) (int, error) {
    if limit < 1 {
        limit = 50
    }
    n, err := s.ScheduleRepo.RequeueFailed(ctx, limit, s.Clock.Now())
    if err != nil {
        return 0, err
    }
    s.Log.Info().Int("requeued", n).Msg("failed entries requeued from admin API")
    return n, nil
}

// TriggerTask asks the workers to run task now.
func (s *CampaignService) TriggerTask(ctx context.Context, task string, limit int) error {
    if !Triggerable[task] {
        return appErrors.Wrapf(appErrors.ErrUnknownTask, "task %q", task)
    }
    cmd := queue.Command{Task: task, Limit: limit, RequestedAt: s.Clock.Now().UTC().Truncate(time.Second)}
    if err := queue.PublishJSON(ctx, s.Queue, queue.TopicCommands, cmd); err != nil {
        return err
    }
    s.Log.Info().Str("task", task).Msg("task triggered")
    return nil
}
