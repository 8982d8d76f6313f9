package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// siteFetchTimeout is the hard deadline on the homepage fetch; past it the
// researcher fails over to the fallback.
const siteFetchTimeout = 10 * time.Second

const maxSiteBytes = 2 * 1024 * 1024

// SiteResearcher fetches a contact's website, extracts its visible text, and
// summarizes it with the text model. Used when the channel link carries the
// "N/A" sentinel.
type SiteResearcher struct {
	model      TextModel
	httpClient *http.Client
	logger     *zap.Logger
}

func NewSiteResearcher(model TextModel, logger *zap.Logger) *SiteResearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteResearcher{
		model:      model,
		httpClient: &http.Client{Timeout: siteFetchTimeout},
		logger:     logger,
	}
}

func (r *SiteResearcher) Research(ctx context.Context, identifier, niche string) Result {
	title, text, err := r.fetch(ctx, identifier)
	if err != nil {
		r.logger.Warn("site fetch failed", zap.String("site", identifier), zap.Error(err))
		return Fallback(identifier, niche)
	}

	prompt := strings.Join([]string{
		"Summarize this creator website in two sentences for a polite outreach email.",
		"Niche: " + niche,
		"Site title: " + title,
		"Page text:",
		text,
	}, "\n")
	summary, err := r.model.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("site summary failed", zap.String("site", identifier), zap.Error(err))
		return Fallback(identifier, niche)
	}

	name := title
	if name == "" {
		name = hostOf(identifier)
	}
	return Result{Summary: summary, DisplayName: name}
}

// fetch downloads the homepage and extracts the title plus visible text.
func (r *SiteResearcher) fetch(ctx context.Context, site string) (title, text string, err error) {
	addr := site
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch site: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", "", fmt.Errorf("fetch site: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxSiteBytes))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title, text = extractText(doc)
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("no visible text at %s", addr)
	}
	// Keep the prompt bounded; pages repeat themselves long before this.
	if len(text) > 4000 {
		text = text[:4000]
	}
	return title, text, nil
}

// extractText walks the DOM collecting visible text, skipping script and
// style subtrees, and captures the <title>.
func extractText(doc *html.Node) (title, text string) {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, strings.TrimSpace(b.String())
}

func hostOf(site string) string {
	addr := site
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	if u, err := url.Parse(addr); err == nil && u.Host != "" {
		return u.Host
	}
	return site
}
