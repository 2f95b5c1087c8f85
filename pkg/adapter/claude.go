package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

const DefaultClaudeModel = "claude-3-5-haiku-latest"

// ClaudeClient implements Completer with the Anthropic messages API
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

type claudeConfig struct {
	model   string
	baseURL string
}

type ClaudeOption func(*claudeConfig)

func WithClaudeModel(model string) ClaudeOption {
	return func(c *claudeConfig) {
		c.model = model
	}
}

func WithClaudeBaseURL(url string) ClaudeOption {
	return func(c *claudeConfig) {
		c.baseURL = url
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	cfg := claudeConfig{model: DefaultClaudeModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &ClaudeClient{
		client: &client,
		model:  cfg.model,
	}
}

func (c *ClaudeClient) Complete(ctx context.Context, history model.Transcript, maxTokens int) (*Completion, error) {
	messages, err := toClaudeMessages(history)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message", goerr.V("model", c.model))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Completion{
		Text:         text.String(),
		FinishReason: normalizeClaudeStopReason(msg.StopReason),
		TotalTokens:  uint64(max(msg.Usage.InputTokens+msg.Usage.OutputTokens, 0)),
	}, nil
}

func normalizeClaudeStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return FinishReasonStop
	default:
		return string(reason)
	}
}

// toClaudeMessages converts quanta to Claude messages. The messages API has
// only user and assistant turns, so system messages and long-term memories
// become user turns in place. A trailing assistant turn would be taken as a
// prefill, so the prompt is closed with ContinuePrompt.
func toClaudeMessages(history model.Transcript) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for i, q := range history {
		switch v := q.(type) {
		case *model.UserMessage:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Content)))
		case *model.AssistantMessage:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(v.Content)))
		case *model.SystemMessage:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Content)))
		case *model.LongTermMemory:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Summary)))
		default:
			return nil, goerr.New("unsupported quantum type",
				goerr.V("index", i),
				goerr.V("type", fmt.Sprintf("%T", q)),
			)
		}
	}

	if n := len(messages); n > 0 && messages[n-1].Role == anthropic.MessageParamRoleAssistant {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(ContinuePrompt)))
	}
	return messages, nil
}
