package podcast

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fyang0507/notion-agent/pkg/storage"
)

// SubscriptionsDir holds one YAML file per saved show under the workspace
// root.
const SubscriptionsDir = "podcasts"

// Subscription is one saved podcast: the display name the user saves it
// under plus its RSS feed URL.
type Subscription struct {
	Name    string    `yaml:"name"`
	FeedURL string    `yaml:"feed_url"`
	AddedAt time.Time `yaml:"added_at"`
}

// SubscriptionStore persists subscriptions through the storage abstraction,
// so saved shows live next to the skill artifacts on the same backend.
type SubscriptionStore struct {
	backend storage.Backend
}

// NewSubscriptionStore creates a store on top of backend.
func NewSubscriptionStore(backend storage.Backend) *SubscriptionStore {
	return &SubscriptionStore{backend: backend}
}

func subscriptionPath(name string) string {
	return SubscriptionsDir + "/" + name + ".yaml"
}

// Save writes a subscription, overwriting any prior one with the same name.
func (s *SubscriptionStore) Save(ctx context.Context, sub Subscription) error {
	if strings.Contains(sub.Name, "/") {
		return errors.Errorf("podcast name %q must not contain '/'", sub.Name)
	}

	content, err := yaml.Marshal(sub)
	if err != nil {
		return errors.Wrap(err, "failed to serialize subscription")
	}
	if err := s.backend.WriteFile(ctx, subscriptionPath(sub.Name), content); err != nil {
		return errors.Wrapf(err, "failed to save subscription %q", sub.Name)
	}
	return nil
}

// List returns every saved subscription sorted by name, skipping files that
// fail to parse.
func (s *SubscriptionStore) List(ctx context.Context) ([]Subscription, error) {
	entries, err := s.backend.ReadDir(ctx, SubscriptionsDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}

	var subs []Subscription
	for _, entry := range entries {
		if entry.IsDir || !strings.HasSuffix(entry.Name, ".yaml") {
			continue
		}
		content, err := s.backend.ReadFile(ctx, SubscriptionsDir+"/"+entry.Name)
		if err != nil || content == nil {
			continue
		}
		var sub Subscription
		if err := yaml.Unmarshal(content, &sub); err != nil {
			continue
		}
		subs = append(subs, sub)
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	return subs, nil
}

// GetByName returns the subscription matching name case-insensitively after
// trimming, or nil when none matches.
func (s *SubscriptionStore) GetByName(ctx context.Context, name string) (*Subscription, error) {
	subs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	for i := range subs {
		if strings.ToLower(strings.TrimSpace(subs[i].Name)) == want {
			return &subs[i], nil
		}
	}
	return nil, nil
}
