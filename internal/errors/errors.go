// internal/errors/errors.go
package appErrors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Wrapping and inspection come from cockroachdb/errors so callers get
// stack traces without importing it directly.
var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	WithHint = crdb.WithHint
	Is       = crdb.Is
	As       = crdb.As
)

var (
	// ErrNoSenders is returned when an active campaign has no senders attached.
	ErrNoSenders = New("campaign has no senders")

	// ErrEntryNotClaimed means a conditional status transition matched no row:
	// the entry was finalized or claimed by someone else.
	ErrEntryNotClaimed = New("schedule entry is not in the expected state")

	// ErrDuplicateTrackingID is returned when an entry's tracking id is taken.
	ErrDuplicateTrackingID = New("tracking id already in use")

	// ErrDocumentGeneration is recorded when the LOI generator yields no file.
	ErrDocumentGeneration = New("document generation failed")

	// ErrUnknownTask is returned for task names the runner does not know.
	ErrUnknownTask = New("unknown task")

	// ErrTaskRunning is returned when a manual run overlaps a run in progress.
	ErrTaskRunning = New("task already running")
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ConfigError marks a campaign whose settings cannot be scheduled. It fails
// that campaign's cycle only and is never auto-corrected.
type ConfigError struct {
	CampaignID int
	Field      string
	Reason     string
	Err        error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("campaign %d: invalid %s: %s", e.CampaignID, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(campaignID int, field, reason string) error {
	return &ConfigError{CampaignID: campaignID, Field: field, Reason: reason}
}

// IsConfigError reports whether err carries a ConfigError anywhere in its chain.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return As(err, &ce)
}
