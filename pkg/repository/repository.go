package repository

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

// DefaultFileName is the snapshot file name placed next to the executable
const DefaultFileName = "save.json"

var ErrInvalidLocation = goerr.New("invalid snapshot location")

// Repository persists the whole transcript as a single snapshot
type Repository interface {
	// Load reads the snapshot. It returns (nil, false, nil) when no snapshot
	// exists yet. A malformed snapshot is an error.
	Load(ctx context.Context) (model.Transcript, bool, error)

	// Save overwrites the snapshot with transcript
	Save(ctx context.Context, transcript model.Transcript) error

	// Location describes where the snapshot lives
	Location() string

	// Close releases the backend client
	io.Closer
}

// DefaultLocation returns save.json in the directory of the running executable
func DefaultLocation() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve executable path")
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName), nil
}

// Open selects a backend by location:
//
//	gs://<bucket>/<object>                              Cloud Storage object
//	firestore://<project>/<database>/<collection>/<doc> Firestore document
//	bigquery://<project>/<dataset>/<table>              BigQuery archive table
//	sqlite://<path>                                     local SQLite journal
//	anything else                                       local file path
//
// An empty location means DefaultLocation.
func Open(ctx context.Context, location string) (Repository, error) {
	if location == "" {
		loc, err := DefaultLocation()
		if err != nil {
			return nil, err
		}
		location = loc
	}

	switch {
	case strings.HasPrefix(location, gcsScheme):
		bucket, key, err := parseObjectLocation(location)
		if err != nil {
			return nil, err
		}
		storage, err := adapter.NewStorage(ctx, bucket)
		if err != nil {
			return nil, err
		}
		return NewObject(storage, bucket, key), nil

	case strings.HasPrefix(location, firestoreScheme):
		loc, err := parseFirestoreLocation(location)
		if err != nil {
			return nil, err
		}
		return NewFirestore(ctx, loc)

	case strings.HasPrefix(location, bigqueryScheme):
		loc, err := parseBigQueryLocation(location)
		if err != nil {
			return nil, err
		}
		bq, err := adapter.NewBigQuery(ctx, loc.ProjectID)
		if err != nil {
			return nil, err
		}
		return NewArchive(ctx, bq, loc)

	case strings.HasPrefix(location, sqliteScheme):
		path, err := parseSQLiteLocation(location)
		if err != nil {
			return nil, err
		}
		return NewJournal(ctx, path)

	default:
		return NewFile(location), nil
	}
}

func encode(transcript model.Transcript) ([]byte, error) {
	if transcript == nil {
		transcript = model.Transcript{}
	}
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal transcript")
	}
	return data, nil
}

func decode(data []byte, location string) (model.Transcript, error) {
	var transcript model.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, goerr.Wrap(err, "malformed snapshot", goerr.V("location", location))
	}
	return transcript, nil
}
