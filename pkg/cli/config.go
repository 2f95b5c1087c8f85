package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/profile"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/m-mizutani/kioku/pkg/usecase/chat"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"
	providerClaude = "claude"
)

var ErrUnknownProvider = goerr.New("unknown completion provider")

// config holds configuration values
type config struct {
	// Completion provider
	provider        string
	model           string
	maxTokens       int64
	openaiAPIKey    string
	openaiBaseURL   string
	anthropicAPIKey string
	geminiProject   string
	geminiLocation  string

	// Memory
	save               string
	profileDir         string
	dropLongTermMemory bool

	// Runtime
	timeout     time.Duration
	logLevel    string
	historyFile string
}

// llmFlags returns flags for the completion provider with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Completion provider (openai, gemini, claude)",
			Value:       providerOpenAI,
			Sources:     cli.EnvVars("KIOKU_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "Model name (provider default if empty)",
			Sources:     cli.EnvVars("KIOKU_MODEL"),
			Destination: &cfg.model,
		},
		&cli.IntFlag{
			Name:        "max-tokens",
			Usage:       "Max tokens of a reply",
			Value:       chat.DefaultMaxTokens,
			Sources:     cli.EnvVars("KIOKU_MAX_TOKENS"),
			Destination: &cfg.maxTokens,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible API",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// memoryFlags returns flags for the transcript and profile
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "save",
			Aliases:     []string{"s"},
			Usage:       "Snapshot location: file path, gs://bucket/object, firestore://project/database/collection/document, bigquery://project/dataset/table or sqlite://path (default: save.json next to the executable)",
			Sources:     cli.EnvVars("KIOKU_SAVE"),
			Destination: &cfg.save,
		},
		&cli.StringFlag{
			Name:        "profile-dir",
			Usage:       "Directory holding name, initial_mem and settings.yaml (default: ~/" + profile.DirName + ")",
			Sources:     cli.EnvVars("KIOKU_PROFILE_DIR"),
			Destination: &cfg.profileDir,
		},
		&cli.BoolFlag{
			Name:        "drop-long-term-memory",
			Usage:       "Drop long-term memories from the transcript on compression",
			Sources:     cli.EnvVars("KIOKU_DROP_LONG_TERM_MEMORY"),
			Destination: &cfg.dropLongTermMemory,
		},
	}
}

// runtimeFlags returns flags for the REPL itself
func runtimeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of one turn including emotion classification (0 means no timeout)",
			Sources:     cli.EnvVars("KIOKU_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level (debug, info, warn, error)",
			Value:       logging.DefaultLevel,
			Sources:     cli.EnvVars("KIOKU_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File to keep line editor history (disabled if empty)",
			Sources:     cli.EnvVars("KIOKU_HISTORY_FILE"),
			Destination: &cfg.historyFile,
		},
	}
}

// isSet reports whether a flag was given on the command line or by env var
type isSet interface {
	IsSet(name string) bool
}

// applySettings fills values from settings.yaml that were not given by flag
// or environment variable.
func (cfg *config) applySettings(c isSet, s profile.Settings) {
	if s.Provider != "" && !c.IsSet("provider") {
		cfg.provider = s.Provider
	}
	if s.Model != "" && !c.IsSet("model") {
		cfg.model = s.Model
	}
	if s.MaxTokens > 0 && !c.IsSet("max-tokens") {
		cfg.maxTokens = int64(s.MaxTokens)
	}
	if s.KeepLongTermMemory != nil && !c.IsSet("drop-long-term-memory") {
		cfg.dropLongTermMemory = !*s.KeepLongTermMemory
	}
	if s.SavePath != "" && !c.IsSet("save") {
		cfg.save = s.SavePath
	}
}

func (cfg *config) profileDirectory() (string, error) {
	if cfg.profileDir != "" {
		return cfg.profileDir, nil
	}
	return profile.DefaultDir()
}

func (cfg *config) longTermMemoryPolicy() memory.LongTermMemoryPolicy {
	if cfg.dropLongTermMemory {
		return memory.DropLongTermMemory
	}
	return memory.KeepLongTermMemory
}

// newCompleter creates the completion adapter of the selected provider
func (cfg *config) newCompleter(ctx context.Context) (adapter.Completer, error) {
	if cfg.maxTokens <= 0 {
		return nil, goerr.New("max-tokens must be positive", goerr.V("max_tokens", cfg.maxTokens))
	}

	switch cfg.provider {
	case providerOpenAI:
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		var opts []adapter.OpenAIOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithOpenAIModel(cfg.model))
		}
		if cfg.openaiBaseURL != "" {
			opts = append(opts, adapter.WithOpenAIBaseURL(cfg.openaiBaseURL))
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey, opts...), nil

	case providerClaude:
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required")
		}
		var opts []adapter.ClaudeOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithClaudeModel(cfg.model))
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, opts...), nil

	case providerGemini:
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		var opts []adapter.GeminiOption
		if cfg.model != "" {
			opts = append(opts, adapter.WithGenerativeModel(cfg.model))
		}
		gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return adapter.NewGeminiCompleter(gemini), nil

	default:
		return nil, goerr.Wrap(ErrUnknownProvider, "provider must be openai, gemini or claude",
			goerr.V("provider", cfg.provider))
	}
}

// newRepository opens the snapshot repository
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	repo, err := repository.Open(ctx, cfg.save)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open repository", goerr.V("save", cfg.save))
	}
	return repo, nil
}
