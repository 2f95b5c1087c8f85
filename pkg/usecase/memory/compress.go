package memory

import (
	"context"
	"math"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

var (
	ErrInvalidRetention = goerr.New("invalid retention amount")
	ErrInvalidIntensity = goerr.New("invalid emotion intensity")
)

// LongTermMemoryPolicy decides what happens to long-term memories found in
// the compressed transcript. They are logged in both cases.
type LongTermMemoryPolicy int

const (
	// DropLongTermMemory leaves long-term memories out of the result
	DropLongTermMemory LongTermMemoryPolicy = iota
	// KeepLongTermMemory puts long-term memories, in their original order,
	// in front of the retained chunks
	KeepLongTermMemory
)

type options struct {
	ltm LongTermMemoryPolicy
}

type Option func(*options)

func WithLongTermMemory(policy LongTermMemoryPolicy) Option {
	return func(o *options) {
		o.ltm = policy
	}
}

// ValidateRetention checks that amount is in [0, 1]
func ValidateRetention(amount float64) error {
	if math.IsNaN(amount) || amount < 0 || amount > 1 {
		return goerr.Wrap(ErrInvalidRetention, "retention amount must be in [0, 1]", goerr.V("retention", amount))
	}
	return nil
}

// Compress keeps floor(chunks * retention) chunks with the most intense
// response emotion and returns them in chronological order. retention of 0
// drops every chunk and 1 keeps all of them. Trailing conditions without a
// response are dropped. The input transcript is never modified.
func Compress(ctx context.Context, transcript model.Transcript, retention float64, opts ...Option) (model.Transcript, error) {
	if err := ValidateRetention(retention); err != nil {
		return nil, err
	}

	o := options{ltm: DropLongTermMemory}
	for _, opt := range opts {
		opt(&o)
	}

	p, err := Split(transcript)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to split transcript into chunks")
	}

	for i, c := range p.Chunks {
		if math.IsNaN(c.Response.Emotion.Intensity) {
			return nil, goerr.Wrap(ErrInvalidIntensity, "response intensity is NaN",
				goerr.V("chunk", i),
				goerr.V("content", c.Response.Content),
			)
		}
	}

	chunks := slices.Clone(p.Chunks)
	slices.SortStableFunc(chunks, func(a, b *Chunk) int {
		// descending
		return cmpFloat(b.Response.Emotion.Intensity, a.Response.Emotion.Intensity)
	})

	keep := int(math.Floor(float64(len(chunks)) * retention))
	retained := chunks[:keep]

	slices.SortStableFunc(retained, func(a, b *Chunk) int {
		return a.Response.Time.Compare(b.Response.Time)
	})

	logger := logging.From(ctx)
	for _, ltm := range p.LongTermMemories {
		logger.Info("long-term memory",
			"summary", ltm.Summary,
			"emotion", ltm.Emotion.Label,
			"level", ltm.Emotion.Intensity,
		)
	}
	logger.Info("memory compressed",
		"chunks", len(chunks),
		"retained", keep,
		"open_conditions_dropped", len(p.Open),
		"long_term_memories", len(p.LongTermMemories),
		"keep_long_term_memory", o.ltm == KeepLongTermMemory,
	)

	var out model.Transcript
	if o.ltm == KeepLongTermMemory {
		for _, ltm := range p.LongTermMemories {
			out = append(out, ltm)
		}
	}
	for _, c := range retained {
		out = append(out, c.Quanta()...)
	}

	// Result shares no quantum with the input
	return out.Clone(), nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
