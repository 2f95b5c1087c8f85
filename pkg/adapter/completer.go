package adapter

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// FinishReasonStop is the normalized finish reason of a completion that
// ended naturally. Providers map their own value to it.
const FinishReasonStop = "stop"

// ContinuePrompt closes a prompt that ends with an assistant turn for
// providers that would otherwise extend that turn instead of starting a new one.
const ContinuePrompt = "(No new message from the user. Continue the conversation.)"

// Completion is the result of one chat completion call
type Completion struct {
	Text         string
	FinishReason string
	TotalTokens  uint64
}

// Completer is the interface of a chat completion provider
type Completer interface {
	// Complete sends history as prompt and returns the next assistant text
	Complete(ctx context.Context, history model.Transcript, maxTokens int) (*Completion, error)
}
