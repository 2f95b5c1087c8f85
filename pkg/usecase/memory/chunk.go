package memory

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Chunk is a run of condition quanta (user or system) closed by the
// assistant response they led to.
type Chunk struct {
	Conditions []model.Quantum
	Response   *model.AssistantMessage
}

// Quanta returns the chunk as transcript order: conditions then response
func (c *Chunk) Quanta() []model.Quantum {
	out := make([]model.Quantum, 0, len(c.Conditions)+1)
	out = append(out, c.Conditions...)
	return append(out, c.Response)
}

// Partition is the result of a single scan over a transcript
type Partition struct {
	Chunks           []*Chunk
	LongTermMemories []*model.LongTermMemory
	// Open holds trailing conditions that no assistant response closed
	Open []model.Quantum
}

// Split scans transcript once. User and system quanta accumulate as pending
// conditions, each assistant quantum closes a chunk with them and long-term
// memories are collected aside without interrupting the pending run.
func Split(transcript model.Transcript) (*Partition, error) {
	p := &Partition{}
	var pending []model.Quantum

	for i, q := range transcript {
		switch v := q.(type) {
		case *model.UserMessage, *model.SystemMessage:
			pending = append(pending, v)
		case *model.AssistantMessage:
			p.Chunks = append(p.Chunks, &Chunk{
				Conditions: pending,
				Response:   v,
			})
			pending = nil
		case *model.LongTermMemory:
			p.LongTermMemories = append(p.LongTermMemories, v)
		default:
			return nil, goerr.New("unknown quantum type",
				goerr.V("index", i),
				goerr.V("type", fmt.Sprintf("%T", q)),
			)
		}
	}

	p.Open = pending
	return p, nil
}
