package research

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// ChannelResearcher summarizes a creator's channel from its public link using
// the text model. Any model failure degrades to the fallback.
type ChannelResearcher struct {
	model  TextModel
	logger *zap.Logger
}

func NewChannelResearcher(model TextModel, logger *zap.Logger) *ChannelResearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelResearcher{model: model, logger: logger}
}

func (r *ChannelResearcher) Research(ctx context.Context, identifier, niche string) Result {
	prompt := strings.Join([]string{
		"You research content creators for a polite outreach email.",
		"Channel link: " + identifier,
		"Niche: " + niche,
		"Reply with exactly three lines:",
		"NAME: the creator or channel display name",
		"SUMMARY: two sentences about what the channel covers and its tone",
		"TITLES: up to three plausible recent video titles, separated by ';' (or blank)",
	}, "\n")

	text, err := r.model.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("channel research failed", zap.String("channel", identifier), zap.Error(err))
		return Fallback(identifier, niche)
	}
	return parseStructured(text, identifier, niche)
}

// parseStructured reads the NAME/SUMMARY/TITLES line protocol, falling back
// to treating the whole reply as the summary when the model ignored it.
func parseStructured(text, identifier, niche string) Result {
	result := Result{DisplayName: identifier}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "NAME:"):
			result.DisplayName = strings.TrimSpace(strings.TrimPrefix(line, "NAME:"))
		case strings.HasPrefix(line, "SUMMARY:"):
			result.Summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "TITLES:"):
			for _, t := range strings.Split(strings.TrimPrefix(line, "TITLES:"), ";") {
				if t = strings.TrimSpace(t); t != "" {
					result.RecentTitles = append(result.RecentTitles, t)
				}
			}
		}
	}
	if result.Summary == "" {
		result.Summary = strings.TrimSpace(text)
	}
	if result.Summary == "" {
		return Fallback(identifier, niche)
	}
	return result
}
