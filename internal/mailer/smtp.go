package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type SMTP struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Sender = (*SMTP)(nil)

func NewSMTP(cfg SMTPConfig) *SMTP { return &SMTP{cfg: cfg, sendMail: smtp.SendMail} }

// Send writes the message as multipart/mixed (HTML body plus the optional
// attachment) and hands it to the relay. The generated Message-ID is the
// provider message id.
func (s *SMTP) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if msg.To == "" {
		return Receipt{}, appErrors.New("message has no recipient")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(msg.Sender.Email))
	raw, err := buildMIME(msg, messageID)
	if err != nil {
		return Receipt{}, err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	// net/smtp has no context support; run it aside so cancellation returns.
	done := make(chan error, 1)
	go func() { done <- s.sendMail(addr, auth, msg.Sender.Email, []string{msg.To}, raw) }()
	select {
	case err := <-done:
		if err != nil {
			return Receipt{}, appErrors.Wrapf(err, "smtp send to %s", msg.To)
		}
		return Receipt{ProviderMessageID: messageID}, nil
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
}

func buildMIME(msg Message, messageID string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	from := msg.Sender.Email
	if msg.Sender.Name != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.Sender.Name), msg.Sender.Email)
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	if msg.TrackingID != "" {
		fmt.Fprintf(&buf, "X-Tracking-ID: %s\r\n", msg.TrackingID)
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

	body, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := body.Write([]byte(msg.Body)); err != nil {
		return nil, err
	}

	if msg.AttachmentPath != "" {
		data, err := os.ReadFile(msg.AttachmentPath)
		if err != nil {
			return nil, appErrors.Wrap(err, "read attachment")
		}
		name := filepath.Base(msg.AttachmentPath)
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ctype},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", name)},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, part)
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return "localhost"
}
