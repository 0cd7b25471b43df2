// Package notion integrates the assistant with the Notion API: a small
// data-source client for schema lookups plus the "notion *" command family
// that drives the skill lifecycle and the datasource cache.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/datasources"
	"github.com/fyang0507/notion-agent/pkg/logger"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"
	retryAttempts  = 3
)

// Client talks to the Notion API. It only covers what the agent needs:
// finding databases by name and retrieving their schemas.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API endpoint. Used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a Notion API client authenticated with an integration
// token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Database is a search result: a database's stable ID and display title.
type Database struct {
	ID    string
	Title string
}

type retryableError struct {
	error
}

// do performs one API call with retries on transient failures (network
// errors, 429, 5xx). Non-2xx terminal responses become errors carrying the
// API's message.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return retry.Do(
		func() error {
			var reqBody io.Reader
			if body != nil {
				encoded, err := json.Marshal(body)
				if err != nil {
					return errors.Wrap(err, "failed to encode request body")
				}
				reqBody = bytes.NewReader(encoded)
			}

			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
			if err != nil {
				return errors.Wrap(err, "failed to build request")
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Notion-Version", notionVersion)
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return &retryableError{errors.Wrap(err, "notion api request failed")}
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &retryableError{errors.Errorf("notion api returned %d for %s %s", resp.StatusCode, method, path)}
			}
			if resp.StatusCode >= 400 {
				var apiErr struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&apiErr)
				return errors.Errorf("notion api returned %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
			}

			if out != nil {
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return errors.Wrap(err, "failed to decode notion api response")
				}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			_, transient := errors.Cause(err).(*retryableError)
			return transient
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("retrying notion api call")
		}),
	)
}

type richText struct {
	PlainText string `json:"plain_text"`
}

func plainText(parts []richText) string {
	text := ""
	for _, part := range parts {
		text += part.PlainText
	}
	return text
}

// SearchDatabases finds databases matching query, in Notion's relevance
// order.
func (c *Client) SearchDatabases(ctx context.Context, query string) ([]Database, error) {
	request := map[string]interface{}{
		"query": query,
		"filter": map[string]string{
			"value":    "database",
			"property": "object",
		},
	}

	var response struct {
		Results []struct {
			ID    string     `json:"id"`
			Title []richText `json:"title"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", request, &response); err != nil {
		return nil, err
	}

	databases := make([]Database, 0, len(response.Results))
	for _, result := range response.Results {
		databases = append(databases, Database{
			ID:    result.ID,
			Title: plainText(result.Title),
		})
	}
	return databases, nil
}

type optionList struct {
	Options []struct {
		Name string `json:"name"`
	} `json:"options"`
}

type propertyPayload struct {
	Type        string      `json:"type"`
	Select      *optionList `json:"select,omitempty"`
	MultiSelect *optionList `json:"multi_select,omitempty"`
	Status      *optionList `json:"status,omitempty"`
}

func (p propertyPayload) options() []string {
	var list *optionList
	switch p.Type {
	case "select":
		list = p.Select
	case "multi_select":
		list = p.MultiSelect
	case "status":
		list = p.Status
	}
	if list == nil {
		return nil
	}

	names := make([]string, 0, len(list.Options))
	for _, option := range list.Options {
		names = append(names, option.Name)
	}
	return names
}

// RetrieveSchema fetches a database's schema and converts it into the
// cache's record form: property name to type, plus allowed option values
// for option-bearing types.
func (c *Client) RetrieveSchema(ctx context.Context, id string) (*datasources.Record, error) {
	var response struct {
		ID         string                     `json:"id"`
		Title      []richText                 `json:"title"`
		Properties map[string]propertyPayload `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/databases/%s", id), nil, &response); err != nil {
		return nil, err
	}

	properties := make(map[string]datasources.Property, len(response.Properties))
	for name, payload := range response.Properties {
		properties[name] = datasources.Property{
			Type:    payload.Type,
			Options: payload.options(),
		}
	}

	return &datasources.Record{
		Name:       plainText(response.Title),
		ID:         response.ID,
		Properties: properties,
	}, nil
}
