package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyang0507/notion-agent/pkg/agent"
	"github.com/fyang0507/notion-agent/pkg/presenter"
)

// ChatOptions contains all options for the chat command
type ChatOptions struct {
	resumeConvID string
	noSave       bool
}

var chatOptions = &ChatOptions{}

// consoleHandler renders agent progress events to the terminal.
type consoleHandler struct{}

func (consoleHandler) HandleText(text string) {
	fmt.Println(text)
}

func (consoleHandler) HandleToolUse(command string) {
	presenter.Info("[command] " + command)
}

func (consoleHandler) HandleToolResult(result string) {
	presenter.Info(result)
	presenter.Separator()
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Start an interactive chat session where the assistant manages skills and podcasts on your behalf.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		registry, err := buildRegistry(ctx)
		if err != nil {
			presenter.Error(err, "failed to initialize commands")
			return
		}

		thread := agent.NewThread(agentConfigFromViper(), registry, nil)
		if !chatOptions.noSave {
			store, err := openConversationStore(ctx)
			if err != nil {
				presenter.Error(err, "failed to open conversation store")
				return
			}
			defer store.Close()

			thread = agent.NewThread(agentConfigFromViper(), registry, store)
			if chatOptions.resumeConvID != "" {
				if err := thread.Resume(ctx, chatOptions.resumeConvID); err != nil {
					presenter.Error(err, "failed to resume conversation")
					return
				}
				presenter.Info("Resumed conversation " + chatOptions.resumeConvID)
			}
		}

		presenter.Section("notion-agent chat")
		presenter.Info("Type a message, or 'exit' to quit.")

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			if _, err := thread.SendMessage(ctx, line, consoleHandler{}); err != nil {
				if ctx.Err() != nil {
					break
				}
				presenter.Error(err, "chat turn failed")
			}
		}

		if id := thread.ConversationID(); id != "" {
			presenter.Info("Conversation saved as " + id)
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatOptions.resumeConvID, "resume", "", "Resume a saved conversation by ID")
	chatCmd.Flags().BoolVar(&chatOptions.noSave, "no-save", false, "Do not persist this conversation")
}
