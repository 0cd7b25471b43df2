package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyang0507/notion-agent/pkg/agent"
	"github.com/fyang0507/notion-agent/pkg/conversations"
	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/presenter"
	"github.com/fyang0507/notion-agent/pkg/webui"
)

// ServeOptions contains all options for the serve command
type ServeOptions struct {
	host string
	port int
}

var serveOptions = &ServeOptions{}

// threadChatService runs each web chat turn on a fresh agent thread, resuming
// persisted history when a conversation ID is supplied.
type threadChatService struct {
	config   agent.Config
	registry *gateway.Registry
	store    *conversations.Store
}

func (s *threadChatService) SendMessage(ctx context.Context, conversationID, message string) (string, string, error) {
	thread := agent.NewThread(s.config, s.registry, s.store)
	if conversationID != "" {
		if err := thread.Resume(ctx, conversationID); err != nil {
			return "", "", err
		}
	}

	reply, err := thread.SendMessage(ctx, message, nil)
	if err != nil {
		return "", "", err
	}
	return reply, thread.ConversationID(), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant's web server",
	Long:  `Start an HTTP server exposing conversation history, direct command execution, and chat.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Shutting down web server...")
			cancel()
		}()

		registry, err := buildRegistry(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize commands")
			return
		}

		store, err := openConversationStore(ctx)
		if err != nil {
			presenter.Error(err, "failed to open conversation store")
			return
		}
		defer store.Close()

		chat := &threadChatService{
			config:   agentConfigFromViper(),
			registry: registry,
			store:    store,
		}

		server, err := webui.NewServer(
			&webui.ServerConfig{Host: serveOptions.host, Port: serveOptions.port},
			store, registry, chat,
		)
		if err != nil {
			presenter.Error(err, "failed to create web server")
			return
		}

		if err := server.Start(ctx); err != nil {
			presenter.Error(err, "web server stopped with error")
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOptions.host, "host", "localhost", "Host to bind the web server to")
	serveCmd.Flags().IntVar(&serveOptions.port, "port", 8910, "Port to bind the web server to")
}
