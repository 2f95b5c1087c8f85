package adapter

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIClient implements Completer with the OpenAI chat completion API
type OpenAIClient struct {
	client openai.Client
	model  string
}

type openAIConfig struct {
	model   string
	baseURL string
}

type OpenAIOption func(*openAIConfig)

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

// WithOpenAIBaseURL points the client to an OpenAI compatible endpoint
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openAIConfig{model: DefaultOpenAIModel}
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

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  cfg.model,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, history model.Transcript, maxTokens int) (*Completion, error) {
	messages, err := toOpenAIMessages(history)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(c.model),
		Messages:         messages,
		MaxTokens:        openai.Int(int64(maxTokens)),
		N:                openai.Int(1),
		Temperature:      openai.Float(0),
		TopP:             openai.Float(0),
		PresencePenalty:  openai.Float(2),
		FrequencyPenalty: openai.Float(2),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion", goerr.V("model", c.model))
	}

	if len(resp.Choices) == 0 {
		return nil, goerr.New("no choice in chat completion", goerr.V("model", c.model))
	}
	choice := resp.Choices[0]

	return &Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TotalTokens:  uint64(max(resp.Usage.TotalTokens, 0)),
	}, nil
}

// toOpenAIMessages converts quanta to chat messages. Long-term memories are
// sent as system messages carrying their summary.
func toOpenAIMessages(history model.Transcript) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for i, q := range history {
		switch v := q.(type) {
		case *model.UserMessage:
			messages = append(messages, openai.UserMessage(v.Content))
		case *model.AssistantMessage:
			messages = append(messages, openai.AssistantMessage(v.Content))
		case *model.SystemMessage:
			messages = append(messages, openai.SystemMessage(v.Content))
		case *model.LongTermMemory:
			messages = append(messages, openai.SystemMessage(v.Summary))
		default:
			return nil, goerr.New("unsupported quantum type",
				goerr.V("index", i),
				goerr.V("type", fmt.Sprintf("%T", q)),
			)
		}
	}
	return messages, nil
}
