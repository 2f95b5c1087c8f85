package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/usecase/chat"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

const worldPrefix = "world: "

type lineReader interface {
	Readline() (string, error)
}

// indicator shows that the agent is working
type indicator interface {
	Start()
	Stop()
}

type repl struct {
	session    *chat.Session
	reader     lineReader
	out        io.Writer
	indicator  indicator
	timeout    time.Duration
	terminator *terminator
}

// run reads lines until the session ends. A signal, Ctrl-C or end of input
// saves the transcript and exits; the exit command exits without saving.
func (r *repl) run(ctx context.Context, sigCh <-chan os.Signal) error {
	go func() {
		if sig, ok := <-sigCh; ok {
			logging.From(ctx).Info("signal received", "signal", sig.String())
			r.terminator.saveAndExit(ctx)
		}
	}()

	for {
		line, err := r.reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			r.terminator.saveAndExit(ctx)
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read line")
		}

		if err := r.handle(ctx, line); errors.Is(err, errExit) {
			r.terminator.exitWithoutSaving()
			return nil
		}
	}
}

// handle runs one line. It returns errExit for the exit command; any other
// failure is reported to the user and the loop goes on.
func (r *repl) handle(ctx context.Context, line string) error {
	if command, ok := strings.CutPrefix(line, "#"); ok {
		return r.dispatch(ctx, command)
	}

	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}

	reply, err := r.generate(ctx, func(ctx context.Context) (*chat.Reply, error) {
		return r.session.Send(ctx, text)
	})
	if err != nil {
		r.reportError(ctx, err)
		return nil
	}
	r.printReply(reply)
	return nil
}

// generate runs fn under the turn timeout while the indicator spins
func (r *repl) generate(ctx context.Context, fn func(ctx context.Context) (*chat.Reply, error)) (*chat.Reply, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.indicator.Start()
	reply, err := fn(ctx)
	r.indicator.Stop()

	return reply, err
}

func (r *repl) printReply(reply *chat.Reply) {
	if reply.FinishReason != adapter.FinishReasonStop {
		r.printf("warning: finish reason is %s", reply.FinishReason)
	}
	fmt.Fprintf(r.out, "%s: %s, (t: %d, e: %s)\n",
		r.session.AgentName(),
		reply.Message.Content,
		reply.TotalTokens,
		reply.Message.Emotion,
	)
}

func (r *repl) reportError(ctx context.Context, err error) {
	logging.From(ctx).Debug("command failed", "error", err)
	r.printf("%s", err.Error())
}

// printf writes one line prefixed with the world tag
func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, worldPrefix+format+"\n", args...)
}
