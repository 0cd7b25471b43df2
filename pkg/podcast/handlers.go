package podcast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/logger"
)

const helpText = `Podcast commands:
  podcast list                                      List saved podcasts
  podcast search <query>                            Search the iTunes podcast directory
  podcast save "<name>" "<feed url>"                Save a podcast by its RSS feed
  podcast check <name>                              Verify a saved podcast's feed is reachable
  podcast recommend [topN=N] [days=N] [criteria="..."]
                                                    List recent episodes across saved podcasts
  podcast help                                      Show this help`

const (
	defaultRecommendTopN = 5
	defaultRecommendDays = 7
	searchResultLimit    = 5
)

// Handlers binds the "podcast *" verb family to the iTunes client, the feed
// reader and the subscription store.
type Handlers struct {
	itunes *ITunesClient
	feeds  *FeedReader
	subs   *SubscriptionStore
}

// NewHandlers wires the podcast command family.
func NewHandlers(itunes *ITunesClient, feeds *FeedReader, subs *SubscriptionStore) *Handlers {
	return &Handlers{itunes: itunes, feeds: feeds, subs: subs}
}

// Commands returns the verb->handler map for registry construction.
func (h *Handlers) Commands() map[string]gateway.Handler {
	return map[string]gateway.Handler{
		"podcast help":      h.help,
		"podcast list":      h.list,
		"podcast search":    h.search,
		"podcast save":      h.save,
		"podcast check":     h.check,
		"podcast recommend": h.recommend,
	}
}

func (h *Handlers) help(_ context.Context, _ string) (string, error) {
	return helpText, nil
}

func (h *Handlers) list(ctx context.Context, _ string) (string, error) {
	subs, err := h.subs.List(ctx)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return `No podcasts saved yet. Find one with 'podcast search <query>' and save it with 'podcast save "<name>" "<feed url>"'.`, nil
	}

	var sb strings.Builder
	sb.WriteString("Saved podcasts:\n")
	for _, sub := range subs {
		fmt.Fprintf(&sb, "- %s (%s)\n", sub.Name, sub.FeedURL)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (h *Handlers) search(ctx context.Context, args string) (string, error) {
	query := gateway.StripQuotes(args)
	if query == "" {
		return "", gateway.Usagef("Usage: podcast search <query>")
	}

	shows, err := h.itunes.Search(ctx, query, searchResultLimit)
	if err != nil {
		return "", err
	}
	if len(shows) == 0 {
		return fmt.Sprintf("No podcasts found for %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d podcasts for %q:\n", len(shows), query)
	for _, show := range shows {
		fmt.Fprintf(&sb, "- %s by %s [%s, %d episodes]\n  feed: %s\n",
			show.Name, show.Artist, show.Genre, show.Episodes, show.FeedURL)
	}
	sb.WriteString(`Save one with 'podcast save "<name>" "<feed url>"'.`)
	return sb.String(), nil
}

func (h *Handlers) save(ctx context.Context, args string) (string, error) {
	name, feedURL, ok := gateway.SplitTwoQuoted(args)
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(feedURL) == "" {
		return "", gateway.Usagef(`Usage: podcast save "<name>" "<feed url>"`)
	}

	// Validate the feed before persisting anything.
	info, err := h.feeds.Fetch(ctx, feedURL)
	if err != nil {
		return "", gateway.Validationf("could not fetch feed %s: %v", feedURL, err)
	}

	sub := Subscription{Name: name, FeedURL: feedURL, AddedAt: time.Now().UTC()}
	if err := h.subs.Save(ctx, sub); err != nil {
		return "", err
	}

	return fmt.Sprintf("Saved %q (%s, %d episodes in feed).", name, info.Title, info.EpisodeCount), nil
}

func (h *Handlers) check(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef("Usage: podcast check <name>")
	}

	sub, err := h.subs.GetByName(ctx, name)
	if err != nil {
		return "", err
	}
	if sub == nil {
		subs, err := h.subs.List(ctx)
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(subs))
		for _, s := range subs {
			names = append(names, s.Name)
		}
		if len(names) == 0 {
			return "", gateway.NotFoundf("No podcast saved as %q (no podcasts are saved yet).", name)
		}
		return "", gateway.NotFoundf("No podcast saved as %q. Saved podcasts: %s", name, strings.Join(names, ", "))
	}

	info, err := h.feeds.Fetch(ctx, sub.FeedURL)
	if err != nil {
		return fmt.Sprintf("%q is saved but its feed is currently unreachable: %v", sub.Name, err), nil
	}
	return fmt.Sprintf("%q is saved and reachable (%s, %d episodes in feed).", sub.Name, info.Title, info.EpisodeCount), nil
}

// parseRecommendArgs parses the optional topN=, days= and criteria="..."
// settings of the recommend verb. Settings are scanned left to right, so a
// quoted criteria value may appear in any position without swallowing the
// settings that follow it.
func parseRecommendArgs(raw string) (topN, days int, criteria string, err error) {
	topN, days = defaultRecommendTopN, defaultRecommendDays

	raw = strings.TrimSpace(raw)
	for raw != "" {
		if rest, found := strings.CutPrefix(raw, "criteria="); found {
			if strings.HasPrefix(rest, `"`) {
				end := strings.Index(rest[1:], `"`)
				if end < 0 {
					return 0, 0, "", fmt.Errorf("criteria value is missing its closing quote")
				}
				criteria = rest[1 : 1+end]
				raw = strings.TrimSpace(rest[end+2:])
				continue
			}
			// Unquoted criteria runs to the end of the line.
			criteria = gateway.StripQuotes(rest)
			break
		}

		field := raw
		if idx := strings.IndexByte(raw, ' '); idx >= 0 {
			field, raw = raw[:idx], strings.TrimSpace(raw[idx+1:])
		} else {
			raw = ""
		}

		key, value, found := strings.Cut(field, "=")
		if !found {
			return 0, 0, "", fmt.Errorf("unexpected argument %q", field)
		}
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n <= 0 {
			return 0, 0, "", fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		switch key {
		case "topN":
			topN = n
		case "days":
			days = n
		default:
			return 0, 0, "", fmt.Errorf("unknown setting %q", key)
		}
	}
	return topN, days, criteria, nil
}

func (h *Handlers) recommend(ctx context.Context, args string) (string, error) {
	topN, days, criteria, err := parseRecommendArgs(args)
	if err != nil {
		return "", gateway.Usagef(`Usage: podcast recommend [topN=N] [days=N] [criteria="..."] (%v)`, err)
	}

	subs, err := h.subs.List(ctx)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "No podcasts saved yet, so there is nothing to recommend from.", nil
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	var episodes []Episode
	var fetchErrs *multierror.Error
	for _, sub := range subs {
		recent, err := h.feeds.RecentEpisodes(ctx, sub.Name, sub.FeedURL, since)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("podcast", sub.Name).Warn("skipping unreachable feed")
			fetchErrs = multierror.Append(fetchErrs, err)
			continue
		}
		episodes = append(episodes, recent...)
	}

	if len(episodes) == 0 && fetchErrs.ErrorOrNil() != nil {
		// Every feed failed; that is a transport problem, not an empty result.
		return "", fetchErrs.ErrorOrNil()
	}

	sortEpisodes(episodes)
	if len(episodes) > topN {
		episodes = episodes[:topN]
	}

	var sb strings.Builder
	if len(episodes) == 0 {
		fmt.Fprintf(&sb, "No episodes published in the last %d days across %d saved podcasts.", days, len(subs))
	} else {
		fmt.Fprintf(&sb, "Top %d episodes from the last %d days:\n", len(episodes), days)
		for _, episode := range episodes {
			fmt.Fprintf(&sb, "- [%s] %s (%s) %s\n",
				episode.Show, episode.Title, episode.Published.Format("2006-01-02"), episode.URL)
		}
	}
	if criteria != "" {
		fmt.Fprintf(&sb, "\nRank these for the user with respect to: %s", criteria)
	}
	if errCount := len(fetchErrs.WrappedErrors()); errCount > 0 {
		fmt.Fprintf(&sb, "\nNote: %d feed(s) could not be fetched and were skipped.", errCount)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
