package adapter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
	PresencePenalty  float64 `json:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
}

func TestOpenAIComplete(t *testing.T) {
	var received chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		gt.V(t, r.Header.Get("Authorization")).Equal("Bearer test-key")

		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Hello again"},
				"finish_reason": "length"
			}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23}
		}`))
	}))
	defer srv.Close()

	client := adapter.NewOpenAI("test-key", adapter.WithOpenAIBaseURL(srv.URL+"/v1/"))
	completion, err := client.Complete(context.Background(), history(), 100)
	gt.NoError(t, err).Required()

	gt.V(t, completion.Text).Equal("Hello again")
	gt.V(t, completion.FinishReason).Equal("length")
	gt.V(t, completion.TotalTokens).Equal(uint64(23))

	gt.V(t, received.Model).Equal(adapter.DefaultOpenAIModel)
	gt.V(t, received.MaxTokens).Equal(100)
	gt.V(t, received.PresencePenalty).Equal(2.0)
	gt.V(t, received.FrequencyPenalty).Equal(2.0)
	gt.A(t, received.Messages).Length(4).Required()

	roles := make([]string, 0, len(received.Messages))
	for _, m := range received.Messages {
		roles = append(roles, m.Role)
	}
	gt.V(t, roles).Equal([]string{"system", "user", "assistant", "system"})
	gt.V(t, received.Messages[0].Content).Equal("My name is alice. Your name is Mika.")
}

func TestOpenAICompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := adapter.NewOpenAI("wrong", adapter.WithOpenAIBaseURL(srv.URL+"/v1/"), adapter.WithOpenAIModel("gpt-4o-mini"))
	_, err := client.Complete(context.Background(), history(), 100)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("failed to create chat completion")
}

func TestOpenAICompleteLive(t *testing.T) {
	apiKey := os.Getenv("TEST_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_OPENAI_API_KEY is not set")
	}

	completion, err := adapter.NewOpenAI(apiKey).Complete(context.Background(), model.Transcript{
		model.NewUserMessage("Reply with the single word: pong"),
	}, 10)
	gt.NoError(t, err).Required()
	gt.S(t, strings.ToLower(completion.Text)).Contains("pong")
}
