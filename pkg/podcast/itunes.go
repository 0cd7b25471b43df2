// Package podcast integrates podcast discovery and recommendation: show
// search through the iTunes Search API, subscriptions persisted through the
// storage abstraction, and episode listings pulled from subscription RSS
// feeds.
package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/logger"
)

const (
	defaultITunesBaseURL = "https://itunes.apple.com"
	itunesRetryAttempts  = 3
)

// Show is one iTunes search result.
type Show struct {
	Name     string
	Artist   string
	FeedURL  string
	Genre    string
	Episodes int
}

// ITunesClient queries the iTunes Search API for podcasts.
type ITunesClient struct {
	httpClient *http.Client
	baseURL    string
}

// ITunesOption configures an ITunesClient.
type ITunesOption func(*ITunesClient)

// WithITunesBaseURL points the client at a different endpoint. Used by tests.
func WithITunesBaseURL(baseURL string) ITunesOption {
	return func(c *ITunesClient) { c.baseURL = baseURL }
}

// NewITunesClient creates an iTunes Search API client.
func NewITunesClient(opts ...ITunesOption) *ITunesClient {
	c := &ITunesClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultITunesBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns up to limit podcasts matching term.
func (c *ITunesClient) Search(ctx context.Context, term string, limit int) ([]Show, error) {
	query := url.Values{}
	query.Set("media", "podcast")
	query.Set("entity", "podcast")
	query.Set("term", term)
	query.Set("limit", fmt.Sprintf("%d", limit))

	var response struct {
		Results []struct {
			CollectionName   string `json:"collectionName"`
			ArtistName       string `json:"artistName"`
			FeedURL          string `json:"feedUrl"`
			PrimaryGenreName string `json:"primaryGenreName"`
			TrackCount       int    `json:"trackCount"`
		} `json:"results"`
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+query.Encode(), nil)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to build itunes request"))
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return errors.Wrap(err, "itunes search request failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return errors.Errorf("itunes search returned %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(errors.Errorf("itunes search returned %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to decode itunes response"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(itunesRetryAttempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying itunes search")
		}),
	)
	if err != nil {
		return nil, err
	}

	shows := make([]Show, 0, len(response.Results))
	for _, result := range response.Results {
		shows = append(shows, Show{
			Name:     result.CollectionName,
			Artist:   result.ArtistName,
			FeedURL:  result.FeedURL,
			Genre:    result.PrimaryGenreName,
			Episodes: result.TrackCount,
		})
	}
	return shows, nil
}
