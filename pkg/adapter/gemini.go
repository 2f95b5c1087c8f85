package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/genai"
)

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}

// GeminiCompleter implements Completer on top of Gemini
type GeminiCompleter struct {
	gemini Gemini
}

func NewGeminiCompleter(gemini Gemini) *GeminiCompleter {
	return &GeminiCompleter{gemini: gemini}
}

func (c *GeminiCompleter) Complete(ctx context.Context, history model.Transcript, maxTokens int) (*Completion, error) {
	contents, err := toGeminiContents(history)
	if err != nil {
		return nil, err
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		Temperature:      ptr[float32](0),
		TopP:             ptr[float32](0),
		PresencePenalty:  ptr[float32](2),
		FrequencyPenalty: ptr[float32](2),
		CandidateCount:   1,
		MaxOutputTokens:  int32(maxTokens),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	resp, err := c.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate completion")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.New("no candidate in response")
	}
	candidate := resp.Candidates[0]

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}

	completion := &Completion{
		Text:         text.String(),
		FinishReason: normalizeGeminiFinishReason(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		completion.TotalTokens = uint64(max(resp.UsageMetadata.TotalTokenCount, 0))
	}
	return completion, nil
}

func ptr[T any](v T) *T {
	return &v
}

func normalizeGeminiFinishReason(reason genai.FinishReason) string {
	if reason == genai.FinishReasonStop {
		return FinishReasonStop
	}
	return strings.ToLower(string(reason))
}

// toGeminiContents converts quanta to Gemini contents. Gemini has no system
// role inside contents, so system messages and long-term memories are sent
// as user turns to keep their position in the conversation. The contents
// must end on a user turn, so a trailing model turn gets ContinuePrompt.
func toGeminiContents(history model.Transcript) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))
	for i, q := range history {
		switch v := q.(type) {
		case *model.UserMessage:
			contents = append(contents, genai.NewContentFromText(v.Content, genai.RoleUser))
		case *model.AssistantMessage:
			contents = append(contents, genai.NewContentFromText(v.Content, genai.RoleModel))
		case *model.SystemMessage:
			contents = append(contents, genai.NewContentFromText(v.Content, genai.RoleUser))
		case *model.LongTermMemory:
			contents = append(contents, genai.NewContentFromText(v.Summary, genai.RoleUser))
		default:
			return nil, goerr.New("unsupported quantum type",
				goerr.V("index", i),
				goerr.V("type", fmt.Sprintf("%T", q)),
			)
		}
	}

	if n := len(contents); n > 0 && contents[n-1].Role == string(genai.RoleModel) {
		contents = append(contents, genai.NewContentFromText(ContinuePrompt, genai.RoleUser))
	}
	return contents, nil
}
