package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/session"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

const (
	DefaultMaxTokens = 100
	SystemName       = "system"
)

// Session runs conversation turns against the session store
type Session struct {
	store      *session.Store
	repo       repository.Repository
	completer  adapter.Completer
	classifier Classifier

	userName  string
	agentName string
	maxTokens int
	ltmPolicy memory.LongTermMemoryPolicy
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	Store      *session.Store
	Repo       repository.Repository
	Completer  adapter.Completer
	Classifier Classifier // Optional: defaults to asking Completer

	UserName  string
	AgentName string
	MaxTokens int // Optional: defaults to DefaultMaxTokens

	LongTermMemory memory.LongTermMemoryPolicy
}

// Reply is one generated assistant turn
type Reply struct {
	Message      *model.AssistantMessage
	FinishReason string
	TotalTokens  uint64
}

func New(input NewInput) (*Session, error) {
	if input.Store == nil {
		return nil, goerr.New("session store is required")
	}
	if input.Repo == nil {
		return nil, goerr.New("repository is required")
	}
	if input.Completer == nil {
		return nil, goerr.New("completer is required")
	}

	classifier := input.Classifier
	if classifier == nil {
		classifier = NewClassifier(input.Completer)
	}
	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Session{
		store:      input.Store,
		repo:       input.Repo,
		completer:  input.Completer,
		classifier: classifier,
		userName:   input.UserName,
		agentName:  input.AgentName,
		maxTokens:  maxTokens,
		ltmPolicy:  input.LongTermMemory,
	}, nil
}

// Restore loads the saved transcript from repo, or starts from seed when
// nothing has been saved yet.
func Restore(ctx context.Context, repo repository.Repository, seed model.Transcript) (*session.Store, error) {
	transcript, found, err := repo.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load transcript", goerr.V("location", repo.Location()))
	}

	if !found {
		logging.From(ctx).Info("no saved transcript, start from seed", "location", repo.Location())
		transcript = seed.Clone()
	} else {
		logging.From(ctx).Info("transcript loaded", "location", repo.Location(), "length", len(transcript))
	}

	return session.New(transcript, len(seed)), nil
}

func (s *Session) UserName() string  { return s.userName }
func (s *Session) AgentName() string { return s.agentName }
func (s *Session) Location() string  { return s.repo.Location() }

// Send handles a user turn. The user message and the reply are appended
// together only when the reply has been generated; on error the store is
// left untouched.
func (s *Session) Send(ctx context.Context, text string) (*Reply, error) {
	user := model.NewUserMessage(text)

	history := s.store.SnapshotClone()
	history = append(history, user)

	reply, err := s.generate(ctx, history)
	if err != nil {
		return nil, err
	}

	s.store.Append(user, reply.Message)
	return reply, nil
}

// Respond generates an assistant turn without new user input
func (s *Session) Respond(ctx context.Context) (*Reply, error) {
	reply, err := s.generate(ctx, s.store.SnapshotClone())
	if err != nil {
		return nil, err
	}

	s.store.Append(reply.Message)
	return reply, nil
}

func (s *Session) generate(ctx context.Context, history model.Transcript) (*Reply, error) {
	completion, err := s.completer.Complete(ctx, history, s.maxTokens)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get completion")
	}

	emotion, err := s.classifier.Classify(ctx, history)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to classify emotion")
	}

	if completion.FinishReason != adapter.FinishReasonStop {
		logging.From(ctx).Warn("completion did not finish cleanly",
			"finish_reason", completion.FinishReason,
			"max_tokens", s.maxTokens,
		)
	}

	return &Reply{
		Message:      model.NewAssistantMessage(completion.Text, emotion),
		FinishReason: completion.FinishReason,
		TotalTokens:  completion.TotalTokens,
	}, nil
}

// SendSystemMessage appends a system message without asking for a reply
func (s *Session) SendSystemMessage(text string) {
	s.store.Append(model.NewSystemMessage(text))
}

// MemClear removes what was added in this run and returns the number removed
func (s *Session) MemClear() int {
	return s.store.DrainFrom(s.store.BaselineLen())
}

// MemClearAll removes everything but the seed and returns the number removed
func (s *Session) MemClearAll() int {
	return s.store.DrainFrom(s.store.SeedLen())
}

// MemDump returns the transcript as indented JSON, the same format as the
// snapshot file.
func (s *Session) MemDump() ([]byte, error) {
	data, err := json.MarshalIndent(s.store.SnapshotClone(), "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal transcript")
	}
	return data, nil
}

// MemLog writes one line per quantum with the speaker name
func (s *Session) MemLog(w io.Writer) error {
	for i, q := range s.store.SnapshotClone() {
		var line string
		switch v := q.(type) {
		case *model.UserMessage:
			line = fmt.Sprintf("%s: %s", s.userName, v.Content)
		case *model.AssistantMessage:
			line = fmt.Sprintf("%s: %s, (e: %s)", s.agentName, v.Content, v.Emotion)
		case *model.SystemMessage:
			line = fmt.Sprintf("%s: %s", SystemName, v.Content)
		case *model.LongTermMemory:
			line = fmt.Sprintf("%s: %s, (e: %s)", SystemName, v.Summary, v.Emotion)
		default:
			return goerr.New("unknown quantum type",
				goerr.V("index", i),
				goerr.V("type", fmt.Sprintf("%T", q)),
			)
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return goerr.Wrap(err, "failed to write log line")
		}
	}
	return nil
}

// CompressResult reports the transcript length around a compression
type CompressResult struct {
	Before int
	After  int
}

// MemCompress keeps the given fraction of the most emotional exchanges. An
// invalid retention amount is rejected before the store is read.
func (s *Session) MemCompress(ctx context.Context, retention float64) (*CompressResult, error) {
	if err := memory.ValidateRetention(retention); err != nil {
		return nil, err
	}

	snapshot := s.store.SnapshotClone()
	compressed, err := memory.Compress(ctx, snapshot, retention, memory.WithLongTermMemory(s.ltmPolicy))
	if err != nil {
		return nil, err
	}

	s.store.Replace(compressed)
	return &CompressResult{
		Before: len(snapshot),
		After:  len(compressed),
	}, nil
}

// Persist freezes the store and saves the final transcript. Mutations after
// Persist are discarded.
func (s *Session) Persist(ctx context.Context) error {
	transcript := s.store.Seal()
	if err := s.repo.Save(ctx, transcript); err != nil {
		return goerr.Wrap(err, "failed to save transcript", goerr.V("location", s.repo.Location()))
	}

	logging.From(ctx).Info("transcript saved", "location", s.repo.Location(), "length", len(transcript))
	return nil
}
