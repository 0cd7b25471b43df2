package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/fyang0507/notion-agent/pkg/agent"
	"github.com/fyang0507/notion-agent/pkg/conversations"
	"github.com/fyang0507/notion-agent/pkg/datasources"
	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/notion"
	"github.com/fyang0507/notion-agent/pkg/podcast"
	"github.com/fyang0507/notion-agent/pkg/skills"
	"github.com/fyang0507/notion-agent/pkg/storage"
)

func storageConfigFromViper() storage.Config {
	return storage.Config{
		Backend:     viper.GetString("storage.backend"),
		LocalRoot:   viper.GetString("storage.local_root"),
		Branch:      viper.GetString("storage.branch"),
		GitHubToken: viper.GetString("github.token"),
		GitHubOwner: viper.GetString("github.owner"),
		GitHubRepo:  viper.GetString("github.repo"),
	}
}

// buildRegistry wires every command family over the configured storage
// backend.
func buildRegistry(ctx context.Context) (*gateway.Registry, error) {
	backend, err := storage.New(ctx, storageConfigFromViper())
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize storage backend")
	}

	var notionClient *notion.Client
	if token := viper.GetString("notion.token"); token != "" {
		notionClient = notion.NewClient(token)
	}

	notionHandlers := notion.NewHandlers(
		notionClient,
		skills.NewManager(backend),
		datasources.NewCache(backend),
	)
	podcastHandlers := podcast.NewHandlers(
		podcast.NewITunesClient(),
		podcast.NewFeedReader(),
		podcast.NewSubscriptionStore(backend),
	)

	return gateway.NewRegistry(notionHandlers.Commands(), podcastHandlers.Commands()), nil
}

func openConversationStore(ctx context.Context) (*conversations.Store, error) {
	return conversations.NewStore(ctx, viper.GetString("db_path"))
}

func agentConfigFromViper() agent.Config {
	return agent.Config{
		APIKey:    viper.GetString("anthropic_api_key"),
		Model:     viper.GetString("model"),
		MaxTokens: viper.GetInt("max_tokens"),
	}
}
