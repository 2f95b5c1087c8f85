package repository

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreScheme = "firestore://"

// FirestoreLocation addresses the document that holds the snapshot
type FirestoreLocation struct {
	ProjectID  string
	DatabaseID string
	Collection string
	Document   string
}

func (l FirestoreLocation) String() string {
	return firestoreScheme + strings.Join([]string{l.ProjectID, l.DatabaseID, l.Collection, l.Document}, "/")
}

type snapshotRecord struct {
	Transcript string    `firestore:"transcript"`
	UpdatedAt  time.Time `firestore:"updated_at,serverTimestamp"`
}

// Firestore stores the snapshot JSON in a single Firestore document
type Firestore struct {
	client   *firestore.Client
	location FirestoreLocation
}

// NewFirestore creates a Firestore backed repository
func NewFirestore(ctx context.Context, loc FirestoreLocation) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, loc.ProjectID, loc.DatabaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("project_id", loc.ProjectID),
			goerr.V("database_id", loc.DatabaseID),
		)
	}

	return &Firestore{
		client:   client,
		location: loc,
	}, nil
}

func (r *Firestore) Location() string {
	return r.location.String()
}

func (r *Firestore) doc() *firestore.DocumentRef {
	return r.client.Collection(r.location.Collection).Doc(r.location.Document)
}

func (r *Firestore) Load(ctx context.Context) (model.Transcript, bool, error) {
	snap, err := r.doc().Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get snapshot document", goerr.V("location", r.Location()))
	}

	var record snapshotRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, false, goerr.Wrap(err, "failed to decode snapshot document", goerr.V("location", r.Location()))
	}

	transcript, err := decode([]byte(record.Transcript), r.Location())
	if err != nil {
		return nil, false, err
	}
	return transcript, true, nil
}

func (r *Firestore) Save(ctx context.Context, transcript model.Transcript) error {
	data, err := encode(transcript)
	if err != nil {
		return err
	}

	if _, err := r.doc().Set(ctx, snapshotRecord{Transcript: string(data)}); err != nil {
		return goerr.Wrap(err, "failed to save snapshot document", goerr.V("location", r.Location()))
	}
	return nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func parseFirestoreLocation(location string) (FirestoreLocation, error) {
	rest, _ := strings.CutPrefix(location, firestoreScheme)
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return FirestoreLocation{}, goerr.Wrap(ErrInvalidLocation,
			"expected firestore://<project>/<database>/<collection>/<document>",
			goerr.V("location", location))
	}
	for _, p := range parts {
		if p == "" {
			return FirestoreLocation{}, goerr.Wrap(ErrInvalidLocation, "empty path element in Firestore location",
				goerr.V("location", location))
		}
	}

	return FirestoreLocation{
		ProjectID:  parts[0],
		DatabaseID: parts[1],
		Collection: parts[2],
		Document:   parts[3],
	}, nil
}
