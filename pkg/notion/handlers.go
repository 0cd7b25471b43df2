package notion

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/datasources"
	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/skills"
)

const helpText = `Notion commands:
  notion list                          List committed skills
  notion read "<name>"                 Show a skill's instructions
  notion draft "<name>" "<content>"    Stage a skill draft for review
  notion show-draft "<name>"           Show the staged draft
  notion commit "<name>"               Promote the draft to active
  notion discard "<name>"              Delete the staged draft
  notion check "<name>"                Check whether a datasource schema is cached
  notion refresh "<name>"              Re-sync a datasource schema from Notion
  notion help                          Show this help

Skill content must start with a metadata block:
  ---
  name: <skill name>
  description: <one-line description>
  ---
  <instructions>`

// Handlers binds the "notion *" verb family to the skill lifecycle manager,
// the datasource cache and the Notion API client.
type Handlers struct {
	client *Client
	skills *skills.Manager
	cache  *datasources.Cache
}

// NewHandlers wires the notion command family. The client may be nil when
// no integration token is configured; only check/refresh require it.
func NewHandlers(client *Client, manager *skills.Manager, cache *datasources.Cache) *Handlers {
	return &Handlers{client: client, skills: manager, cache: cache}
}

// Commands returns the verb->handler map for registry construction.
func (h *Handlers) Commands() map[string]gateway.Handler {
	return map[string]gateway.Handler{
		"notion help":       h.help,
		"notion list":       h.list,
		"notion read":       h.read,
		"notion draft":      h.draft,
		"notion show-draft": h.showDraft,
		"notion commit":     h.commit,
		"notion discard":    h.discard,
		"notion check":      h.check,
		"notion refresh":    h.refresh,
	}
}

func (h *Handlers) help(_ context.Context, _ string) (string, error) {
	return helpText, nil
}

func (h *Handlers) list(ctx context.Context, _ string) (string, error) {
	committed, err := h.skills.List(ctx)
	if err != nil {
		return "", err
	}
	if len(committed) == 0 {
		return `No skills committed yet. Stage one with 'notion draft "<name>" "<content>"'.`, nil
	}

	var sb strings.Builder
	sb.WriteString("Available skills:\n")
	for _, skill := range committed {
		fmt.Fprintf(&sb, "- %s: %s\n", skill.Name, skill.Description)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (h *Handlers) read(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion read "<name>"`)
	}

	body, err := h.skills.Read(ctx, name)
	if err != nil {
		var notFound *skills.NotFoundError
		if errors.As(err, &notFound) {
			return "", gateway.NotFoundf("%s", notFound.Error())
		}
		return "", err
	}
	return body, nil
}

func (h *Handlers) draft(ctx context.Context, args string) (string, error) {
	name, content, ok := gateway.SplitTwoQuoted(args)
	if !ok || strings.TrimSpace(name) == "" {
		return "", gateway.Usagef(`Usage: notion draft "<name>" "<content>" (both arguments quoted; content may span multiple lines)`)
	}

	if err := h.skills.Stage(ctx, name, content); err != nil {
		var invalid *skills.InvalidNameError
		if errors.As(err, &invalid) {
			return "", gateway.Validationf("%s", invalid.Error())
		}
		var missing *skills.MissingFieldError
		if errors.As(err, &missing) {
			return "", gateway.Validationf("%s. The content must start with a metadata block providing name and description.", missing.Error())
		}
		if errors.Is(err, skills.ErrMissingMetadata) {
			return "", gateway.Validationf("missing metadata block. Start the content with '---', the name and description fields, then '---'.")
		}
		return "", err
	}

	return fmt.Sprintf("Draft saved for %q. Review it with 'notion show-draft \"%s\"', then 'notion commit \"%s\"' or 'notion discard \"%s\"'.",
		name, name, name, name), nil
}

func (h *Handlers) showDraft(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion show-draft "<name>"`)
	}

	content, err := h.skills.Peek(ctx, name)
	if err != nil {
		var invalid *skills.InvalidNameError
		if errors.As(err, &invalid) {
			return "", gateway.Validationf("%s", invalid.Error())
		}
		if errors.Is(err, skills.ErrNoDraft) {
			return "", gateway.NotFoundf("No draft found for %q. Stage one with 'notion draft \"%s\" \"<content>\"'.", name, name)
		}
		return "", err
	}
	return content, nil
}

func (h *Handlers) commit(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion commit "<name>"`)
	}

	if err := h.skills.Commit(ctx, name); err != nil {
		var invalid *skills.InvalidNameError
		if errors.As(err, &invalid) {
			return "", gateway.Validationf("%s", invalid.Error())
		}
		if errors.Is(err, skills.ErrNoDraft) {
			return "", gateway.NotFoundf("No draft found for %q. Stage one with 'notion draft \"%s\" \"<content>\"'.", name, name)
		}
		return "", err
	}
	return fmt.Sprintf("Skill %q committed successfully.", name), nil
}

func (h *Handlers) discard(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion discard "<name>"`)
	}

	if err := h.skills.Discard(ctx, name); err != nil {
		var invalid *skills.InvalidNameError
		if errors.As(err, &invalid) {
			return "", gateway.Validationf("%s", invalid.Error())
		}
		if errors.Is(err, skills.ErrNoDraft) {
			return "", gateway.NotFoundf("No draft found for %q; nothing to discard.", name)
		}
		return "", err
	}
	return fmt.Sprintf("Draft for %q discarded.", name), nil
}

func (h *Handlers) check(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion check "<name>"`)
	}

	status, err := h.cache.CheckCached(ctx, name)
	if err != nil {
		return "", err
	}
	return status.Message, nil
}

func (h *Handlers) refresh(ctx context.Context, args string) (string, error) {
	name := gateway.StripQuotes(args)
	if name == "" {
		return "", gateway.Usagef(`Usage: notion refresh "<name>"`)
	}
	if h.client == nil {
		return "", errors.New("notion integration token is not configured")
	}

	matches, err := h.client.SearchDatabases(ctx, name)
	if err != nil {
		return "", err
	}

	var match *Database
	titles := make([]string, 0, len(matches))
	for i, database := range matches {
		titles = append(titles, database.Title)
		if strings.EqualFold(strings.TrimSpace(database.Title), strings.TrimSpace(name)) && match == nil {
			match = &matches[i]
		}
	}
	if match == nil {
		if len(titles) == 0 {
			return "", gateway.NotFoundf("No Notion database found matching %q.", name)
		}
		return "", gateway.NotFoundf("No Notion database named %q. Closest matches: %s", name, strings.Join(titles, ", "))
	}

	record, err := h.client.RetrieveSchema(ctx, match.ID)
	if err != nil {
		return "", err
	}

	result, err := h.cache.Save(ctx, record)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Schema for %q %s (%d properties).", record.Name, result, len(record.Properties)), nil
}
