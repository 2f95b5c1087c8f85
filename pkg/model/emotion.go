package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidEmotion      = goerr.New("invalid emotion")
	ErrInvalidEmotionReply = goerr.New("invalid emotion reply")
)

// Emotion is a classified emotion of an assistant turn or a long-term memory.
// Intensity is normalized to [0, 1].
type Emotion struct {
	Label     string  `json:"emotion"`
	Intensity float64 `json:"level"`
}

// NewEmotion validates intensity and returns an Emotion. Out of range values
// are rejected, not clamped.
func NewEmotion(label string, intensity float64) (Emotion, error) {
	e := Emotion{Label: label, Intensity: intensity}
	if err := e.Validate(); err != nil {
		return Emotion{}, err
	}
	return e, nil
}

// Validate checks that intensity is a number in [0, 1]
func (e Emotion) Validate() error {
	if math.IsNaN(e.Intensity) || e.Intensity < 0 || e.Intensity > 1 {
		return goerr.Wrap(ErrInvalidEmotion, "intensity must be in [0, 1]",
			goerr.V("label", e.Label),
			goerr.V("intensity", e.Intensity),
		)
	}
	return nil
}

func (e Emotion) String() string {
	return fmt.Sprintf("%s %.2f", e.Label, e.Intensity)
}

// ParseEmotion parses a classifier reply of the form "<Label>, <0-100>".
// The text is split on the first comma and the level is divided by 100.
func ParseEmotion(reply string) (Emotion, error) {
	label, level, ok := strings.Cut(reply, ",")
	if !ok {
		return Emotion{}, goerr.Wrap(ErrInvalidEmotionReply, "missing comma", goerr.V("reply", reply))
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return Emotion{}, goerr.Wrap(ErrInvalidEmotionReply, "empty label", goerr.V("reply", reply))
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(level), 64)
	if err != nil {
		return Emotion{}, goerr.Wrap(ErrInvalidEmotionReply, "level is not a number",
			goerr.V("reply", reply),
			goerr.V("error", err.Error()),
		)
	}

	emotion, err := NewEmotion(label, value/100)
	if err != nil {
		return Emotion{}, goerr.Wrap(ErrInvalidEmotionReply, "level out of range",
			goerr.V("reply", reply),
			goerr.V("level", value),
		)
	}
	return emotion, nil
}
