// Package research produces contextual text about a contact's public channel
// or website. Ordinary failures (quota, timeouts, parse errors) never
// propagate; they degrade to a generic niche-derived fallback so the pipeline
// can keep going.
package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"creator-outreach/internal/models"
)

// Result is the outcome of researching one contact.
type Result struct {
	Summary      string   `json:"summary"`
	RecentTitles []string `json:"recent_titles"`
	DisplayName  string   `json:"display_name"`
	// Degraded marks a fallback result; degraded results are not cached.
	Degraded bool `json:"degraded,omitempty"`
}

// Researcher produces research for one identifier (channel link or website).
type Researcher interface {
	Research(ctx context.Context, identifier, niche string) Result
}

// TextModel generates prose from a prompt.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Fallback builds the degraded-but-valid result used when research fails.
func Fallback(identifier, niche string) Result {
	niche = strings.TrimSpace(niche)
	if niche == "" {
		niche = "their"
	}
	return Result{
		Summary:     fmt.Sprintf("A content creator making %s content for a growing audience.", niche),
		DisplayName: identifier,
		Degraded:    true,
	}
}

// Provider routes a row to the channel or site researcher and caches
// successful results for the cache TTL.
type Provider struct {
	channel Researcher
	site    Researcher
	cache   *Cache
	logger  *zap.Logger
}

// NewProvider wires the two researcher variants with a shared cache.
func NewProvider(channel, site Researcher, cache *Cache, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{channel: channel, site: site, cache: cache, logger: logger}
}

// ForRow researches one contact. The literal "N/A" channel link routes to the
// site variant using the website column.
func (p *Provider) ForRow(ctx context.Context, row models.ContactRow) Result {
	niche := row.Field(models.ColNiche)
	link := strings.TrimSpace(row.Field(models.ColChannelLink))

	variant := p.channel
	identifier := link
	prefix := "channel:"
	if link == "" || link == models.ChannelLinkNA {
		variant = p.site
		identifier = strings.TrimSpace(row.Field(models.ColWebsite))
		prefix = "site:"
	}
	if identifier == "" {
		return Fallback(row.Field(models.ColName), niche)
	}

	key := prefix + identifier
	if cached, ok := p.cache.Get(key); ok {
		return cached
	}

	result := variant.Research(ctx, identifier, niche)
	if result.Degraded {
		p.logger.Warn("research degraded to fallback",
			zap.String("identifier", identifier))
		return result
	}
	p.cache.Put(key, result)
	return result
}
