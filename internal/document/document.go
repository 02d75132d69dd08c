package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Params identify the document and carry its rendered content.
type Params struct {
	CampaignID int
	LeadID     int
	Content    string
}

// Generator produces an attachment for one lead. ok is false when no file
// could be produced; the caller must not send in that case.
type Generator interface {
	Generate(ctx context.Context, p Params) (path string, ok bool)
}

// FileGenerator writes the rendered letter of intent as an HTML file under Dir.
type FileGenerator struct {
	Dir string
	Log zerolog.Logger
}

var _ Generator = (*FileGenerator)(nil)

func (g *FileGenerator) Generate(ctx context.Context, p Params) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "", false
	}
	if p.Content == "" {
		g.Log.Warn().Int("campaign_id", p.CampaignID).Int("lead_id", p.LeadID).Msg("empty document content")
		return "", false
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		g.Log.Error().Err(err).Str("dir", g.Dir).Msg("create document dir")
		return "", false
	}

	name := fmt.Sprintf("loi_%d_%d_%d.html", p.CampaignID, p.LeadID, time.Now().UnixNano())
	path := filepath.Join(g.Dir, name)
	if err := os.WriteFile(path, []byte(p.Content), 0o600); err != nil {
		g.Log.Error().Err(err).Int("campaign_id", p.CampaignID).Int("lead_id", p.LeadID).Msg("write document")
		return "", false
	}
	return path, true
}
