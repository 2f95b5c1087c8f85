package session

import (
	"slices"
	"sync"

	"github.com/m-mizutani/kioku/pkg/model"
)

// Store is the live transcript shared by the chat loop and the termination
// handler. Every operation holds the same mutex, and the transcript slice is
// never handed out.
type Store struct {
	mu         sync.Mutex
	transcript model.Transcript
	sealed     bool

	baselineLen int
	seedLen     int
}

// New creates a store holding a copy of initial without nil quanta. The
// baseline checkpoint is its length, seedLen marks the end of the default seed.
func New(initial model.Transcript, seedLen int) *Store {
	transcript := withoutNil(initial).Clone()
	return &Store{
		transcript:  transcript,
		baselineLen: len(transcript),
		seedLen:     max(seedLen, 0),
	}
}

// BaselineLen is the transcript length at session start
func (s *Store) BaselineLen() int {
	return s.baselineLen
}

// SeedLen is the length of the default seed
func (s *Store) SeedLen() int {
	return s.seedLen
}

// Append adds quanta at the end in one step. Nil quanta are skipped.
func (s *Store) Append(quanta ...model.Quantum) {
	quanta = withoutNil(quanta)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return
	}
	s.transcript = append(s.transcript, quanta...)
}

// SnapshotClone returns an independent copy of the transcript
func (s *Store) SnapshotClone() model.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// DrainFrom removes every quantum at or after index and returns how many were
// removed. An index at or beyond the end removes nothing.
func (s *Store) DrainFrom(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return 0
	}

	index = max(index, 0)
	if index >= len(s.transcript) {
		return 0
	}

	removed := len(s.transcript) - index
	clear(s.transcript[index:])
	s.transcript = s.transcript[:index]
	return removed
}

// Replace swaps the whole transcript, e.g. with a compressed one
func (s *Store) Replace(transcript model.Transcript) {
	cloned := withoutNil(transcript).Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return
	}
	s.transcript = cloned
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Seal takes the final snapshot for persistence. After Seal the store
// ignores every mutation, so the snapshot is the last observable state.
func (s *Store) Seal() model.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = true
	return s.transcript.Clone()
}

func (s *Store) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

func withoutNil(quanta model.Transcript) model.Transcript {
	if !slices.ContainsFunc(quanta, model.IsNil) {
		return quanta
	}
	return slices.DeleteFunc(slices.Clone(quanta), model.IsNil)
}
