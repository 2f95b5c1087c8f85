package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

type persister interface {
	Persist(ctx context.Context) error
	Location() string
}

// terminator ends the process once, whichever of signal, interrupt, end of
// input or the exit command comes first.
type terminator struct {
	once    sync.Once
	session persister
	out     io.Writer
	cleanup func()
	exit    func(code int)
}

// saveAndExit seals the transcript, saves it and exits. A save failure exits
// with status 1.
func (t *terminator) saveAndExit(ctx context.Context) {
	t.once.Do(func() {
		fmt.Fprintf(t.out, "\n%sSaving into: %s...\n", worldPrefix, t.session.Location())

		err := t.session.Persist(ctx)
		t.runCleanup()
		if err != nil {
			logging.From(ctx).Error("failed to save transcript", "error", err)
			fmt.Fprintf(t.out, "%sfailed to save: %s\n", worldPrefix, err.Error())
			t.exit(1)
			return
		}

		fmt.Fprintf(t.out, "%sExiting.\n", worldPrefix)
		t.exit(0)
	})
}

// exitWithoutSaving leaves the saved transcript as it was
func (t *terminator) exitWithoutSaving() {
	t.once.Do(func() {
		t.runCleanup()
		fmt.Fprintf(t.out, "%sExiting.\n", worldPrefix)
		t.exit(0)
	})
}

func (t *terminator) runCleanup() {
	if t.cleanup != nil {
		t.cleanup()
	}
}
