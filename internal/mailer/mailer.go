package mailer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

// Identity is the sender a message goes out as.
type Identity struct {
	Name  string
	Email string
}

type Message struct {
	To             string
	Subject        string
	Body           string // HTML
	AttachmentPath string
	Sender         Identity
	TrackingID     string
}

// Receipt is what the transport reports for an accepted message.
type Receipt struct {
	ProviderMessageID string
}

// Sender delivers one composed message. Timeouts are the implementation's
// and surface as errors.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Mock accepts every message unless Fail returns an error. Sent messages
// are kept for inspection.
type Mock struct {
	Fail func(msg Message) error

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*Mock)(nil)

func (m *Mock) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if m.Fail != nil {
		if err := m.Fail(msg); err != nil {
			return Receipt{}, err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return Receipt{ProviderMessageID: "mock-" + uuid.NewString()}, nil
}

// Sent returns a copy of the accepted messages.
func (m *Mock) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// New picks a transport by name: "smtp" or "mock".
func New(kind string, cfg SMTPConfig) (Sender, error) {
	switch kind {
	case "smtp":
		return NewSMTP(cfg), nil
	case "mock", "":
		return &Mock{}, nil
	default:
		return nil, appErrors.Newf("unknown mailer %q", kind)
	}
}
