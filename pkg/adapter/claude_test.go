package adapter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

func TestClaudeComplete(t *testing.T) {
	var received struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		gt.V(t, r.Header.Get("X-Api-Key")).Equal("test-key")

		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Hi "}, {"type": "text", "text": "alice"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 30, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	client := adapter.NewClaude("test-key", adapter.WithClaudeBaseURL(srv.URL))
	completion, err := client.Complete(context.Background(), history(), 64)
	gt.NoError(t, err).Required()

	gt.V(t, completion.Text).Equal("Hi alice")
	gt.V(t, completion.FinishReason).Equal(adapter.FinishReasonStop)
	gt.V(t, completion.TotalTokens).Equal(uint64(35))

	gt.V(t, received.Model).Equal(adapter.DefaultClaudeModel)
	gt.V(t, received.MaxTokens).Equal(64)
	gt.A(t, received.Messages).Length(4).Required()

	roles := make([]string, 0, len(received.Messages))
	for _, m := range received.Messages {
		roles = append(roles, m.Role)
	}
	gt.V(t, roles).Equal([]string{"user", "user", "assistant", "user"})
	gt.V(t, received.Messages[3].Content[0].Text).Equal("be brief")
}

func TestClaudeCompleteMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_02",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Once upon"}],
			"stop_reason": "max_tokens",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	client := adapter.NewClaude("test-key", adapter.WithClaudeBaseURL(srv.URL), adapter.WithClaudeModel("claude-sonnet-4-0"))
	completion, err := client.Complete(context.Background(), history(), 2)
	gt.NoError(t, err).Required()
	gt.V(t, completion.FinishReason).Equal("max_tokens")
}

func TestClaudeCompleteTrailingAssistant(t *testing.T) {
	var received struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_03",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Are you still there?"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	transcript := model.Transcript{
		model.NewLongTermMemory("My name is alice. Your name is Mika.", model.Emotion{Label: "Sense of existence", Intensity: 1}),
		model.NewUserMessage("Hi"),
		model.NewAssistantMessage("Hello ", model.Emotion{Label: "Joy", Intensity: 0.9}),
	}

	completion, err := adapter.NewClaude("test-key", adapter.WithClaudeBaseURL(srv.URL)).Complete(context.Background(), transcript, 64)
	gt.NoError(t, err).Required()
	gt.V(t, completion.Text).Equal("Are you still there?")

	gt.A(t, received.Messages).Length(4).Required()
	last := received.Messages[3]
	gt.V(t, last.Role).Equal("user")
	gt.V(t, last.Content[0].Text).Equal(adapter.ContinuePrompt)
	gt.V(t, received.Messages[2].Role).Equal("assistant")
}
