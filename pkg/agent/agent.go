// Package agent runs the assistant's LLM loop: user text goes to Claude,
// Claude drives the command gateway through a single tool, and the exchange
// is persisted to the conversation store.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/conversations"
	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/logger"
)

const (
	commandToolName = "assistant_command"

	defaultMaxTokens = 4096
)

// commandInput is the input schema of the assistant_command tool.
type commandInput struct {
	Command string `json:"command" jsonschema:"description=The full command line to run,example=notion list"`
}

// generateSchema reflects a JSON schema from a tool input struct.
func generateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Handler receives progress events while a message is being processed, so
// callers can render tool activity as it happens.
type Handler interface {
	HandleText(text string)
	HandleToolUse(command string)
	HandleToolResult(result string)
}

// NoopHandler discards all events.
type NoopHandler struct{}

func (NoopHandler) HandleText(string)       {}
func (NoopHandler) HandleToolUse(string)    {}
func (NoopHandler) HandleToolResult(string) {}

// Config holds thread settings.
type Config struct {
	APIKey    string // empty means the SDK reads ANTHROPIC_API_KEY
	Model     string
	MaxTokens int
}

// Thread is one conversation with the model. It is safe for sequential use
// only; serialize SendMessage calls per thread.
type Thread struct {
	client         anthropic.Client
	registry       *gateway.Registry
	store          *conversations.Store
	config         Config
	conversationID string
	messages       []anthropic.MessageParam
	mu             sync.Mutex
}

// NewThread creates a thread over registry. store may be nil to skip
// persistence.
func NewThread(config Config, registry *gateway.Registry, store *conversations.Store) *Thread {
	if config.Model == "" {
		config.Model = string(anthropic.ModelClaudeSonnet4_0)
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultMaxTokens
	}

	var clientOpts []option.RequestOption
	if config.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(config.APIKey))
	}

	return &Thread{
		client:   anthropic.NewClient(clientOpts...),
		registry: registry,
		store:    store,
		config:   config,
	}
}

// ConversationID returns the persisted conversation's ID, or "" before the
// first persisted message.
func (t *Thread) ConversationID() string {
	return t.conversationID
}

// Resume loads an existing conversation's history into the thread.
func (t *Thread) Resume(ctx context.Context, conversationID string) error {
	if t.store == nil {
		return errors.New("no conversation store configured")
	}
	_, messages, err := t.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = conversationID
	t.messages = nil
	for _, msg := range messages {
		switch msg.Role {
		case conversations.RoleUser:
			t.messages = append(t.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case conversations.RoleAssistant:
			t.messages = append(t.messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
		// Tool transcripts are kept for display only; replaying them as
		// API blocks would require the original tool_use IDs.
	}
	return nil
}

func (t *Thread) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a personal assistant. You manage the user's Notion skills and podcast subscriptions ")
	sb.WriteString("by running commands through the assistant_command tool.\n\nAvailable commands:\n")
	for _, verb := range t.registry.Verbs() {
		sb.WriteString("- " + verb + "\n")
	}
	sb.WriteString("\nCommand arguments that contain spaces must be wrapped in double quotes. ")
	sb.WriteString("A tool result starting with \"Error:\" describes a user-facing problem; explain it rather than retrying blindly.")
	return sb.String()
}

func (t *Thread) tools() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        commandToolName,
				Description: anthropic.String("Run one assistant command line and return its text output."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: generateSchema[commandInput]().Properties,
				},
			},
		},
	}
}

// runCommand executes one tool invocation through the gateway. Domain
// failures already arrive as "Error: ..." text from the registry; transport
// failures become an error-flagged tool result so the model can tell the
// user the backend is unavailable.
func (t *Thread) runCommand(ctx context.Context, inputJSON []byte) (output string, isError bool) {
	var input commandInput
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return fmt.Sprintf("invalid tool input: %v", err), true
	}

	result, err := t.registry.Execute(ctx, input.Command)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("command", input.Command).Error("command transport failure")
		return fmt.Sprintf("command failed: %v", err), true
	}
	return result, false
}

// SendMessage runs one user turn, looping on tool calls until the model
// answers in plain text. It returns the model's final text.
func (t *Thread) SendMessage(ctx context.Context, message string, handler Handler) (string, error) {
	if handler == nil {
		handler = NoopHandler{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.persist(ctx, conversations.RoleUser, message); err != nil {
		return "", err
	}
	t.messages = append(t.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))

	var finalOutput string
	for {
		response, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
			MaxTokens: int64(t.config.MaxTokens),
			System:    []anthropic.TextBlockParam{{Text: t.systemPrompt()}},
			Messages:  t.messages,
			Model:     anthropic.Model(t.config.Model),
			Tools:     t.tools(),
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to send message to Anthropic")
		}

		t.messages = append(t.messages, response.ToParam())

		toolUseCount := 0
		for _, block := range response.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				handler.HandleText(variant.Text)
				finalOutput = variant.Text
			case anthropic.ToolUseBlock:
				toolUseCount++
				inputJSON := []byte(variant.JSON.Input.Raw())

				var input commandInput
				_ = json.Unmarshal(inputJSON, &input)
				handler.HandleToolUse(input.Command)

				output, isError := t.runCommand(ctx, inputJSON)
				handler.HandleToolResult(output)

				if err := t.persist(ctx, conversations.RoleTool,
					fmt.Sprintf("$ %s\n%s", input.Command, output)); err != nil {
					return "", err
				}
				t.messages = append(t.messages, anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(block.ID, output, isError),
				))
			}
		}

		if toolUseCount == 0 {
			break
		}
	}

	if err := t.persist(ctx, conversations.RoleAssistant, finalOutput); err != nil {
		return "", err
	}
	return finalOutput, nil
}

// persist appends one turn to the conversation store, creating the
// conversation on first use. The first user message becomes the title.
func (t *Thread) persist(ctx context.Context, role, content string) error {
	if t.store == nil || content == "" {
		return nil
	}

	if t.conversationID == "" {
		conv, err := t.store.Create(ctx, titleFrom(content))
		if err != nil {
			return errors.Wrap(err, "failed to create conversation")
		}
		t.conversationID = conv.ID
	}

	if _, err := t.store.AppendMessage(ctx, t.conversationID, role, content); err != nil {
		return errors.Wrap(err, "failed to persist message")
	}
	return nil
}

const maxTitleLen = 60

func titleFrom(message string) string {
	title := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen] + "..."
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}
