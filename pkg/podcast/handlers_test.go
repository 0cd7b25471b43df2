package podcast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/storage"
)

func rssFeed(title string, episodes ...map[string]string) string {
	var items strings.Builder
	for _, ep := range episodes {
		fmt.Fprintf(&items, `<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`,
			ep["title"], ep["link"], ep["pubDate"])
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>%s</title><description>test feed</description>%s</channel></rss>`,
		title, items.String())
}

func newFeedServer(t *testing.T, feeds map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := feeds[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPodcastRegistry(t *testing.T, itunes *ITunesClient) *gateway.Registry {
	t.Helper()
	backend := storage.NewLocal(t.TempDir())
	handlers := NewHandlers(itunes, NewFeedReader(), NewSubscriptionStore(backend))
	return gateway.NewRegistry(handlers.Commands())
}

func executeLine(t *testing.T, registry *gateway.Registry, line string) string {
	t.Helper()
	out, err := registry.Execute(context.Background(), line)
	require.NoError(t, err)
	return out
}

func TestSaveListCheckScenario(t *testing.T) {
	feeds := newFeedServer(t, map[string]string{
		"/gotime": rssFeed("Go Time",
			map[string]string{"title": "Ep 1", "link": "https://example.com/1", "pubDate": time.Now().UTC().Format(time.RFC1123Z)}),
	})
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, fmt.Sprintf(`podcast save "My Show" "%s/gotime"`, feeds.URL))
	assert.Contains(t, out, `Saved "My Show"`)
	assert.Contains(t, out, "Go Time")

	out = executeLine(t, registry, "podcast list")
	assert.Contains(t, out, "My Show")
	assert.Contains(t, out, feeds.URL+"/gotime")

	out = executeLine(t, registry, `podcast check "my show"`)
	assert.Contains(t, out, "saved and reachable")
}

func TestSaveRejectsUnreachableFeed(t *testing.T) {
	feeds := newFeedServer(t, map[string]string{})
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, fmt.Sprintf(`podcast save "Dead Show" "%s/missing"`, feeds.URL))
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "could not fetch feed")

	out = executeLine(t, registry, "podcast list")
	assert.Contains(t, out, "No podcasts saved yet")
}

func TestSaveUsageError(t *testing.T) {
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, "podcast save My Show https://example.com/rss")
	assert.Contains(t, out, "Error: Usage: podcast save")
}

func TestCheckUnknownPodcastListsSaved(t *testing.T) {
	feeds := newFeedServer(t, map[string]string{"/a": rssFeed("A")})
	registry := newPodcastRegistry(t, nil)
	executeLine(t, registry, fmt.Sprintf(`podcast save "Known Show" "%s/a"`, feeds.URL))

	out := executeLine(t, registry, `podcast check "Other Show"`)
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "Known Show")
}

func TestSearchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"collectionName":"Go Time","artistName":"Changelog Media","feedUrl":"https://changelog.com/gotime/feed","primaryGenreName":"Technology","trackCount":300}]}`)
	}))
	defer srv.Close()

	registry := newPodcastRegistry(t, NewITunesClient(WithITunesBaseURL(srv.URL)))

	out := executeLine(t, registry, "podcast search go time")
	assert.Contains(t, out, "Go Time")
	assert.Contains(t, out, "Changelog Media")
	assert.Contains(t, out, "https://changelog.com/gotime/feed")
}

func TestRecommendAggregatesAcrossFeeds(t *testing.T) {
	now := time.Now().UTC()
	feeds := newFeedServer(t, map[string]string{
		"/a": rssFeed("Feed A",
			map[string]string{"title": "Fresh A", "link": "https://example.com/a1", "pubDate": now.Add(-24 * time.Hour).Format(time.RFC1123Z)},
			map[string]string{"title": "Stale A", "link": "https://example.com/a2", "pubDate": now.Add(-30 * 24 * time.Hour).Format(time.RFC1123Z)}),
		"/b": rssFeed("Feed B",
			map[string]string{"title": "Fresh B", "link": "https://example.com/b1", "pubDate": now.Add(-2 * time.Hour).Format(time.RFC1123Z)}),
	})
	registry := newPodcastRegistry(t, nil)
	executeLine(t, registry, fmt.Sprintf(`podcast save "Show A" "%s/a"`, feeds.URL))
	executeLine(t, registry, fmt.Sprintf(`podcast save "Show B" "%s/b"`, feeds.URL))

	out := executeLine(t, registry, "podcast recommend")
	assert.Contains(t, out, "Fresh A")
	assert.Contains(t, out, "Fresh B")
	assert.NotContains(t, out, "Stale A")
	// Newest first: Fresh B (2h old) before Fresh A (24h old).
	assert.Less(t, strings.Index(out, "Fresh B"), strings.Index(out, "Fresh A"))
}

func TestRecommendHonorsSettings(t *testing.T) {
	now := time.Now().UTC()
	feeds := newFeedServer(t, map[string]string{
		"/a": rssFeed("Feed A",
			map[string]string{"title": "Newest", "link": "https://example.com/1", "pubDate": now.Add(-1 * time.Hour).Format(time.RFC1123Z)},
			map[string]string{"title": "Older", "link": "https://example.com/2", "pubDate": now.Add(-48 * time.Hour).Format(time.RFC1123Z)},
			map[string]string{"title": "TooOld", "link": "https://example.com/3", "pubDate": now.Add(-10 * 24 * time.Hour).Format(time.RFC1123Z)}),
	})
	registry := newPodcastRegistry(t, nil)
	executeLine(t, registry, fmt.Sprintf(`podcast save "Show A" "%s/a"`, feeds.URL))

	out := executeLine(t, registry, `podcast recommend topN=1 days=3 criteria="deep technical dives"`)
	assert.Contains(t, out, "Newest")
	assert.NotContains(t, out, "Older")
	assert.NotContains(t, out, "TooOld")
	assert.Contains(t, out, "deep technical dives")
}

func TestRecommendSkipsBrokenFeeds(t *testing.T) {
	now := time.Now().UTC()
	feeds := newFeedServer(t, map[string]string{
		"/good": rssFeed("Good Feed",
			map[string]string{"title": "Good Ep", "link": "https://example.com/g", "pubDate": now.Add(-1 * time.Hour).Format(time.RFC1123Z)}),
	})
	registry := newPodcastRegistry(t, nil)
	executeLine(t, registry, fmt.Sprintf(`podcast save "Good Show" "%s/good"`, feeds.URL))

	// Sneak in a broken subscription directly.
	backendFeeds := newFeedServer(t, map[string]string{"/b": rssFeed("B")})
	executeLine(t, registry, fmt.Sprintf(`podcast save "Broken Show" "%s/b"`, backendFeeds.URL))
	backendFeeds.Close()

	out := executeLine(t, registry, "podcast recommend")
	assert.Contains(t, out, "Good Ep")
	assert.Contains(t, out, "1 feed(s) could not be fetched")
}

func TestRecommendUsageError(t *testing.T) {
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, "podcast recommend topN=zero")
	assert.Contains(t, out, "Error: Usage: podcast recommend")
}

func TestRecommendWithNoSubscriptions(t *testing.T) {
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, "podcast recommend")
	assert.Contains(t, out, "No podcasts saved yet")
}

func TestParseRecommendArgs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		topN     int
		days     int
		criteria string
		wantErr  bool
	}{
		{name: "defaults", raw: "", topN: 5, days: 7},
		{name: "all settings", raw: `topN=3 days=14 criteria="news about Go"`, topN: 3, days: 14, criteria: "news about Go"},
		{name: "criteria only", raw: `criteria="short episodes"`, topN: 5, days: 7, criteria: "short episodes"},
		{name: "criteria before other settings", raw: `criteria="news about Go" days=3`, topN: 5, days: 3, criteria: "news about Go"},
		{name: "criteria between settings", raw: `topN=2 criteria="interviews" days=10`, topN: 2, days: 10, criteria: "interviews"},
		{name: "unquoted criteria runs to end", raw: `days=3 criteria=deep dives`, topN: 5, days: 3, criteria: "deep dives"},
		{name: "unterminated criteria rejected", raw: `criteria="oops days=3`, wantErr: true},
		{name: "negative rejected", raw: "days=-1", wantErr: true},
		{name: "unknown setting rejected", raw: "limit=3", wantErr: true},
		{name: "bare word rejected", raw: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topN, days, criteria, err := parseRecommendArgs(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.topN, topN)
			assert.Equal(t, tt.days, days)
			assert.Equal(t, tt.criteria, criteria)
		})
	}
}

func TestSubscriptionStoreRejectsSlashName(t *testing.T) {
	store := NewSubscriptionStore(storage.NewLocal(t.TempDir()))
	err := store.Save(context.Background(), Subscription{Name: "a/b", FeedURL: "https://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not contain")
}

func TestPodcastHelp(t *testing.T) {
	registry := newPodcastRegistry(t, nil)

	out := executeLine(t, registry, "podcast help")
	for _, verb := range []string{"podcast list", "podcast search", "podcast save", "podcast check", "podcast recommend"} {
		assert.Contains(t, out, verb)
	}
}
