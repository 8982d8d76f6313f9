package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-outreach/internal/models"
)

type fakeResearcher struct {
	calls  int
	result Result
}

func (f *fakeResearcher) Research(ctx context.Context, identifier, niche string) Result {
	f.calls++
	return f.result
}

type fakeModel struct {
	reply string
	err   error
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func contactRow(fields map[string]string) models.ContactRow {
	return models.ContactRow{ID: 1, Fields: fields}
}

func TestProviderRoutesByChannelLink(t *testing.T) {
	channel := &fakeResearcher{result: Result{Summary: "channel summary"}}
	site := &fakeResearcher{result: Result{Summary: "site summary"}}
	p := NewProvider(channel, site, NewCache(time.Hour), nil)
	ctx := context.Background()

	got := p.ForRow(ctx, contactRow(map[string]string{
		models.ColChannelLink: "https://youtube.com/@alex",
		models.ColNiche:       "tech",
	}))
	assert.Equal(t, "channel summary", got.Summary)
	assert.Equal(t, 1, channel.calls)
	assert.Equal(t, 0, site.calls)

	// The "N/A" sentinel means no channel exists; the website is the source.
	got = p.ForRow(ctx, contactRow(map[string]string{
		models.ColChannelLink: models.ChannelLinkNA,
		models.ColWebsite:     "example.com",
	}))
	assert.Equal(t, "site summary", got.Summary)
	assert.Equal(t, 1, site.calls)

	// A blank link routes the same way.
	p.ForRow(ctx, contactRow(map[string]string{
		models.ColChannelLink: "  ",
		models.ColWebsite:     "other.example.com",
	}))
	assert.Equal(t, 2, site.calls)
}

func TestProviderCachesSuccesses(t *testing.T) {
	channel := &fakeResearcher{result: Result{Summary: "cached"}}
	p := NewProvider(channel, &fakeResearcher{}, NewCache(time.Hour), nil)
	row := contactRow(map[string]string{models.ColChannelLink: "https://youtube.com/@alex"})

	p.ForRow(context.Background(), row)
	p.ForRow(context.Background(), row)
	assert.Equal(t, 1, channel.calls, "second lookup is served from cache")
}

func TestProviderDoesNotCacheDegraded(t *testing.T) {
	channel := &fakeResearcher{result: Fallback("x", "tech")}
	p := NewProvider(channel, &fakeResearcher{}, NewCache(time.Hour), nil)
	row := contactRow(map[string]string{models.ColChannelLink: "https://youtube.com/@alex"})

	got := p.ForRow(context.Background(), row)
	assert.True(t, got.Degraded)
	p.ForRow(context.Background(), row)
	assert.Equal(t, 2, channel.calls, "degraded results are retried next time")
}

func TestProviderNoIdentifierFallsBack(t *testing.T) {
	p := NewProvider(&fakeResearcher{}, &fakeResearcher{}, NewCache(time.Hour), nil)
	got := p.ForRow(context.Background(), contactRow(map[string]string{
		models.ColName:        "Alex",
		models.ColNiche:       "cooking",
		models.ColChannelLink: models.ChannelLinkNA,
	}))
	assert.True(t, got.Degraded)
	assert.Contains(t, got.Summary, "cooking")
	assert.Equal(t, "Alex", got.DisplayName)
}

func TestChannelResearcherParsesProtocol(t *testing.T) {
	model := &fakeModel{reply: "NAME: Alex Codes\n" +
		"SUMMARY: Hands-on programming tutorials with a friendly tone.\n" +
		"TITLES: Build a CLI in Go; Redis from scratch ; "}
	r := NewChannelResearcher(model, nil)

	got := r.Research(context.Background(), "https://youtube.com/@alex", "tech")
	assert.Equal(t, "Alex Codes", got.DisplayName)
	assert.Equal(t, "Hands-on programming tutorials with a friendly tone.", got.Summary)
	assert.Equal(t, []string{"Build a CLI in Go", "Redis from scratch"}, got.RecentTitles)
	assert.False(t, got.Degraded)
}

func TestChannelResearcherFreeformReply(t *testing.T) {
	model := &fakeModel{reply: "A channel about woodworking and hand tools."}
	r := NewChannelResearcher(model, nil)

	got := r.Research(context.Background(), "link", "woodworking")
	assert.Equal(t, "A channel about woodworking and hand tools.", got.Summary)
	assert.Equal(t, "link", got.DisplayName, "identifier stands in for the name")
}

func TestChannelResearcherModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("quota exceeded")}
	r := NewChannelResearcher(model, nil)

	got := r.Research(context.Background(), "link", "tech")
	assert.True(t, got.Degraded)
	assert.Contains(t, got.Summary, "tech")
}

func TestSiteResearcherSummarizesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Alex's Workshop</title>
			<script>ignored()</script></head>
			<body><p>Handmade furniture and restoration guides.</p></body></html>`))
	}))
	defer srv.Close()

	r := NewSiteResearcher(&fakeModel{reply: "A furniture restoration site."}, nil)
	got := r.Research(context.Background(), srv.URL, "woodworking")
	require.False(t, got.Degraded)
	assert.Equal(t, "A furniture restoration site.", got.Summary)
	assert.Equal(t, "Alex's Workshop", got.DisplayName)
}

func TestSiteResearcherFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	r := NewSiteResearcher(&fakeModel{reply: "unused"}, nil)
	got := r.Research(context.Background(), srv.URL, "tech")
	assert.True(t, got.Degraded)
}

func TestSiteResearcherSummaryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Some visible text.</body></html>`))
	}))
	defer srv.Close()

	r := NewSiteResearcher(&fakeModel{err: errors.New("model down")}, nil)
	got := r.Research(context.Background(), srv.URL, "tech")
	assert.True(t, got.Degraded)
}

func TestExtractTextSkipsScripts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>T</title></head>
			<body><style>.x{}</style><noscript>js off</noscript><p>kept</p></body></html>`))
	}))
	defer srv.Close()

	model := &recordingModel{}
	r := NewSiteResearcher(model, nil)
	r.Research(context.Background(), srv.URL, "tech")
	require.NotEmpty(t, model.prompt)
	assert.Contains(t, model.prompt, "kept")
	assert.NotContains(t, model.prompt, ".x{}")
	assert.NotContains(t, model.prompt, "js off")
}

type recordingModel struct {
	prompt string
}

func (m *recordingModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return "ok", nil
}
