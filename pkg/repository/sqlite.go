package repository

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const (
	sqliteScheme = "sqlite://"
	// fixed width so that saved_at sorts lexically
	savedAtLayout = "2006-01-02T15:04:05.000000000Z"
)

// Journal keeps every saved snapshot as a row of a local SQLite database and
// loads the newest one.
type Journal struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	entropy *rand.Rand
	now     func() time.Time
}

// NewJournal opens or creates the SQLite database at path
func NewJournal(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create journal directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open journal", goerr.V("path", path))
	}

	j := &Journal{
		db:      db,
		path:    path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		id         TEXT PRIMARY KEY,
		saved_at   TEXT NOT NULL,
		transcript TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_saved ON snapshots(saved_at DESC);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return goerr.Wrap(err, "failed to migrate journal", goerr.V("path", j.path))
	}
	return nil
}

func (j *Journal) newID(ts time.Time) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(ts), j.entropy).String()
}

func (j *Journal) Location() string {
	return sqliteScheme + j.path
}

func (j *Journal) Load(ctx context.Context) (model.Transcript, bool, error) {
	var raw string
	err := j.db.QueryRowContext(ctx,
		`SELECT transcript FROM snapshots ORDER BY saved_at DESC, id DESC LIMIT 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to read latest snapshot", goerr.V("location", j.Location()))
	}

	transcript, err := decode([]byte(raw), j.Location())
	if err != nil {
		return nil, false, err
	}
	return transcript, true, nil
}

func (j *Journal) Save(ctx context.Context, transcript model.Transcript) error {
	data, err := encode(transcript)
	if err != nil {
		return err
	}

	ts := j.now()
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, saved_at, transcript) VALUES (?, ?, ?)`,
		j.newID(ts), ts.UTC().Format(savedAtLayout), string(data),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert snapshot", goerr.V("location", j.Location()))
	}
	return nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func parseSQLiteLocation(location string) (string, error) {
	path, _ := strings.CutPrefix(location, sqliteScheme)
	if path == "" {
		return "", goerr.Wrap(ErrInvalidLocation, "empty SQLite path", goerr.V("location", location))
	}
	return path, nil
}
