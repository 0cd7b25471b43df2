package podcast

import (
	"context"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
)

// Episode is one feed item, tagged with the show it came from.
type Episode struct {
	Show      string
	Title     string
	Published time.Time
	URL       string
}

// FeedInfo summarizes a fetched RSS feed.
type FeedInfo struct {
	Title        string
	Description  string
	EpisodeCount int
}

// FeedReader fetches and parses podcast RSS feeds.
type FeedReader struct {
	parser *gofeed.Parser
}

// NewFeedReader creates a feed reader.
func NewFeedReader() *FeedReader {
	return &FeedReader{parser: gofeed.NewParser()}
}

// Fetch downloads and parses the feed, returning its summary.
func (r *FeedReader) Fetch(ctx context.Context, feedURL string) (*FeedInfo, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch feed %s", feedURL)
	}
	return &FeedInfo{
		Title:        feed.Title,
		Description:  feed.Description,
		EpisodeCount: len(feed.Items),
	}, nil
}

// RecentEpisodes returns the episodes of one feed published at or after
// since, newest first. Items without a parsable publication date are
// skipped.
func (r *FeedReader) RecentEpisodes(ctx context.Context, show, feedURL string, since time.Time) ([]Episode, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch feed %s", feedURL)
	}

	var episodes []Episode
	for _, item := range feed.Items {
		if item.PublishedParsed == nil || item.PublishedParsed.Before(since) {
			continue
		}
		episodes = append(episodes, Episode{
			Show:      show,
			Title:     item.Title,
			Published: *item.PublishedParsed,
			URL:       item.Link,
		})
	}

	sortEpisodes(episodes)
	return episodes, nil
}

// sortEpisodes orders episodes newest first.
func sortEpisodes(episodes []Episode) {
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].Published.After(episodes[j].Published)
	})
}
