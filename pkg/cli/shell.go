package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/usecase/chat"
	"github.com/mattn/go-shellwords"
	"github.com/urfave/cli/v3"
)

var (
	errExit           = errors.New("exit requested")
	ErrUnknownCommand = goerr.New("unknown command")
)

// dispatch runs a '#' command line. The line is split with shell rules and
// parsed by a command tree built for this line only.
func (r *repl) dispatch(ctx context.Context, line string) error {
	args, err := shellwords.Parse(line)
	if err != nil {
		r.reportError(ctx, goerr.Wrap(err, "failed to parse command", goerr.V("line", line)))
		return nil
	}

	err = r.commandTree().Run(ctx, append([]string{"#"}, args...))
	if errors.Is(err, errExit) {
		return errExit
	}
	if err != nil {
		r.reportError(ctx, err)
	}
	return nil
}

func (r *repl) commandTree() *cli.Command {
	cmd := &cli.Command{
		Name:      "#",
		Usage:     "Commands available in chat",
		Writer:    r.out,
		ErrWriter: r.out,
		// Errors are printed by dispatch; the process must not exit here.
		ExitErrHandler: func(ctx context.Context, cmd *cli.Command, err error) {},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Args().Present() {
				return goerr.Wrap(ErrUnknownCommand, "command is required, try '#help'")
			}
			return goerr.Wrap(ErrUnknownCommand, "try '#help'", goerr.V("command", c.Args().First()))
		},
		Commands: []*cli.Command{
			r.memCommand(),
			r.sysCommand(),
			r.respondCommand(),
			exitCommand(),
		},
	}
	quietUsageError(cmd)
	return cmd
}

// quietUsageError makes a usage error a plain error without printing help
func quietUsageError(cmd *cli.Command) {
	cmd.OnUsageError = func(ctx context.Context, cmd *cli.Command, err error, isSubcommand bool) error {
		return err
	}
	for _, sub := range cmd.Commands {
		quietUsageError(sub)
	}
}

func (r *repl) memCommand() *cli.Command {
	return &cli.Command{
		Name:  "mem",
		Usage: "Inspect and edit the memory",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Forget what was said in this run",
				Action: func(ctx context.Context, c *cli.Command) error {
					r.printf("%d messages cleared", r.session.MemClear())
					return nil
				},
			},
			{
				Name:  "clear-all",
				Usage: "Forget everything but the initial memory",
				Action: func(ctx context.Context, c *cli.Command) error {
					r.printf("%d messages cleared", r.session.MemClearAll())
					return nil
				},
			},
			{
				Name:  "dump",
				Usage: "Print the memory as JSON",
				Action: func(ctx context.Context, c *cli.Command) error {
					data, err := r.session.MemDump()
					if err != nil {
						return err
					}
					r.printf("Messages: %s", data)
					return nil
				},
			},
			{
				Name:  "log",
				Usage: "Print the conversation",
				Action: func(ctx context.Context, c *cli.Command) error {
					return r.session.MemLog(r.out)
				},
			},
			{
				Name:  "compress",
				Usage: "Keep only the most emotional exchanges",
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:     "retention-amount",
						Aliases:  []string{"r"},
						Usage:    "Fraction of exchanges to keep, from 0 to 1",
						Required: true,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					result, err := r.session.MemCompress(ctx, c.Float("retention-amount"))
					if err != nil {
						return err
					}
					r.printf("Memory compressed (%d -> %d messages)", result.Before, result.After)
					return nil
				},
			},
		},
	}
}

func (r *repl) sysCommand() *cli.Command {
	return &cli.Command{
		Name:            "sys",
		Usage:           "Send a system message",
		ArgsUsage:       "<words...>",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return goerr.New("system message is empty")
			}
			r.session.SendSystemMessage(text)
			r.printf("system message sent")
			return nil
		},
	}
}

func (r *repl) respondCommand() *cli.Command {
	return &cli.Command{
		Name:  "respond",
		Usage: "Let the agent speak without new input",
		Action: func(ctx context.Context, c *cli.Command) error {
			reply, err := r.generate(ctx, func(ctx context.Context) (*chat.Reply, error) {
				return r.session.Respond(ctx)
			})
			if err != nil {
				return err
			}
			r.printReply(reply)
			return nil
		},
	}
}

func exitCommand() *cli.Command {
	return &cli.Command{
		Name:  "exit",
		Usage: "Exit without saving",
		Action: func(ctx context.Context, c *cli.Command) error {
			return errExit
		},
	}
}
