package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

const (
	// TopicCommands carries manual task triggers from the admin API to workers.
	TopicCommands = "scheduler_commands"
	// TopicEmailEvents carries terminal send outcomes keyed by tracking id.
	TopicEmailEvents = "email_events"
)

// Command asks a worker to run a named task now.
type Command struct {
	Task        string    `json:"task"`
	Limit       int       `json:"limit,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// DeliveryEvent reports the outcome of one schedule entry.
type DeliveryEvent struct {
	EntryID           int       `json:"entry_id"`
	CampaignID        int       `json:"campaign_id"`
	LeadID            int       `json:"lead_id"`
	SenderID          int       `json:"sender_id"`
	TrackingID        string    `json:"tracking_id"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func PublishJSON(ctx context.Context, q Queue, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return appErrors.Wrapf(err, "encode %s message", topic)
	}
	return q.Publish(ctx, topic, payload)
}

// TaskRunner runs a named task; the worker's task manager implements it.
type TaskRunner interface {
	RunNow(ctx context.Context, task string, limit int) error
}

// StartCommandSubscriber feeds commands from TopicCommands into runner.
// Malformed commands, unknown tasks and tasks already running are
// acknowledged and dropped.
func StartCommandSubscriber(ctx context.Context, q Queue, runner TaskRunner, log zerolog.Logger) error {
	return q.Subscribe(ctx, TopicCommands, func(ctx context.Context, payload []byte) error {
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn().Err(err).Msg("invalid command payload")
			return nil
		}
		log.Info().Str("task", cmd.Task).Int("limit", cmd.Limit).Msg("running command")
		if err := runner.RunNow(ctx, cmd.Task, cmd.Limit); err != nil {
			if appErrors.Is(err, appErrors.ErrUnknownTask) {
				log.Warn().Str("task", cmd.Task).Msg("dropping unknown task")
				return nil
			}
			if appErrors.Is(err, appErrors.ErrTaskRunning) {
				log.Info().Str("task", cmd.Task).Msg("task already running, command dropped")
				return nil
			}
			return err
		}
		return nil
	})
}
