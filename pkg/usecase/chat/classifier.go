package chat

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

// EmotionInstruction is appended as a system message to ask the agent for its
// current emotion in the form "<Label>, <0-100>".
const EmotionInstruction = `Tell in one word your emotion and level from 0 to 100 (Example: "Neutral, 4")`

const emotionMaxTokens = 100

// Classifier estimates the agent's emotion for the next reply
type Classifier interface {
	Classify(ctx context.Context, history model.Transcript) (model.Emotion, error)
}

// CompleterClassifier asks the completion provider itself to name its emotion
type CompleterClassifier struct {
	completer adapter.Completer
}

func NewClassifier(completer adapter.Completer) *CompleterClassifier {
	return &CompleterClassifier{completer: completer}
}

func (c *CompleterClassifier) Classify(ctx context.Context, history model.Transcript) (model.Emotion, error) {
	prompt := make(model.Transcript, 0, len(history)+1)
	prompt = append(prompt, history...)
	prompt = append(prompt, model.NewSystemMessage(EmotionInstruction))

	completion, err := c.completer.Complete(ctx, prompt, emotionMaxTokens)
	if err != nil {
		return model.Emotion{}, goerr.Wrap(err, "failed to ask emotion")
	}

	emotion, err := model.ParseEmotion(completion.Text)
	if err != nil {
		return model.Emotion{}, err
	}
	return emotion, nil
}
