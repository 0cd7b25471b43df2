package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Handler executes one command. It receives the raw argument string that
// follows the matched verb (leading/trailing whitespace trimmed, quotes
// intact) and returns the text response for the agent. Handlers convert
// domain failures into *CommandError values; transport failures are
// returned unmodified and bubble past the executor.
type Handler func(ctx context.Context, args string) (string, error)

// Registry maps verb prefixes such as "notion draft" or "podcast search"
// to handlers. Verbs are registered once at construction time and matched
// longest-first, so "skill show-draft" wins over "skill show" when both
// could match an input line.
type Registry struct {
	handlers map[string]Handler
	verbs    []string // sorted by descending length at construction
}

// NewRegistry merges one or more verb->handler maps into a registry.
// Later maps do not override earlier registrations for the same verb.
func NewRegistry(commandMaps ...map[string]Handler) *Registry {
	handlers := make(map[string]Handler)
	for _, commands := range commandMaps {
		for verb, handler := range commands {
			if _, exists := handlers[verb]; !exists {
				handlers[verb] = handler
			}
		}
	}

	verbs := make([]string, 0, len(handlers))
	for verb := range handlers {
		verbs = append(verbs, verb)
	}
	sort.Slice(verbs, func(i, j int) bool {
		if len(verbs[i]) != len(verbs[j]) {
			return len(verbs[i]) > len(verbs[j])
		}
		return verbs[i] < verbs[j]
	})

	return &Registry{handlers: handlers, verbs: verbs}
}

// Verbs returns every registered verb in stable (sorted) order.
func (r *Registry) Verbs() []string {
	verbs := make([]string, len(r.verbs))
	copy(verbs, r.verbs)
	sort.Strings(verbs)
	return verbs
}

// Execute dispatches one input line to the matching handler. A verb matches
// when it equals the trimmed input exactly, or when it is a prefix of the
// input followed immediately by a space. Domain failures surface as
// "Error: ..." text; transport failures propagate as errors so the agent
// runtime can apply its own retry policy. An unmatched input yields a
// deterministic message enumerating every registered verb.
func (r *Registry) Execute(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)

	for _, verb := range r.verbs {
		var args string
		switch {
		case line == verb:
			args = ""
		case strings.HasPrefix(line, verb+" "):
			args = strings.TrimSpace(line[len(verb)+1:])
		default:
			continue
		}

		result, err := r.handlers[verb](ctx, args)
		if err != nil {
			if cmdErr, ok := err.(*CommandError); ok {
				return "Error: " + cmdErr.Message, nil
			}
			return "", err
		}
		return result, nil
	}

	return fmt.Sprintf("Error: Unknown command: %q. Available commands: %s",
		line, strings.Join(r.Verbs(), ", ")), nil
}
