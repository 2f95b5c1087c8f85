package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/profile"
	"github.com/m-mizutani/kioku/pkg/usecase/chat"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, memoryFlags(&cfg)...)
	flags = append(flags, runtimeFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Talk with the agent. Lines starting with '#' are commands (try '#help')",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.New(cfg.logLevel, c.Root().ErrWriter).With("session_id", uuid.NewString())
			logging.SetDefault(logger)

			// The in-REPL command tree must not find this command in its
			// context, or it would run as a subcommand of chat.
			replCtx := logging.With(context.Background(), logger)

			dir, err := cfg.profileDirectory()
			if err != nil {
				return err
			}
			prof, err := profile.Load(dir)
			if err != nil {
				return goerr.Wrap(err, "failed to load profile", goerr.V("dir", dir))
			}
			cfg.applySettings(c, prof.Settings)

			completer, err := cfg.newCompleter(replCtx)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(replCtx)
			if err != nil {
				return err
			}
			// exit paths call os.Exit, so cleanup closes it as well as defer
			closeRepo := sync.OnceFunc(func() {
				if err := repo.Close(); err != nil {
					logger.Warn("failed to close repository", "error", err, "location", repo.Location())
				}
			})
			defer closeRepo()

			store, err := chat.Restore(replCtx, repo, prof.Seed())
			if err != nil {
				return err
			}

			session, err := chat.New(chat.NewInput{
				Store:          store,
				Repo:           repo,
				Completer:      completer,
				UserName:       prof.UserName,
				AgentName:      prof.AgentName,
				MaxTokens:      int(cfg.maxTokens),
				LongTermMemory: cfg.longTermMemoryPolicy(),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          prof.UserName + ": ",
				HistoryFile:     cfg.historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize line editor")
			}
			defer rl.Close()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			r := &repl{
				session:   session,
				reader:    rl,
				out:       c.Root().Writer,
				indicator: newSpinner(),
				timeout:   cfg.timeout,
				terminator: &terminator{
					session: session,
					out:     c.Root().Writer,
					cleanup: func() {
						_ = rl.Close()
						closeRepo()
					},
					exit:    os.Exit,
				},
			}

			logger.Info("chat session started",
				"provider", cfg.provider,
				"location", repo.Location(),
				"length", store.Len(),
			)
			return r.run(replCtx, sigCh)
		},
	}
}

func newSpinner() *spinner.Spinner {
	return spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriterFile(os.Stderr),
		spinner.WithSuffix(" thinking..."),
	)
}
