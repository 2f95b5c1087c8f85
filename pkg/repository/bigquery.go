package repository

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/model"
)

const bigqueryScheme = "bigquery://"

// BigQueryLocation addresses the table that archives snapshots
type BigQueryLocation struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (l BigQueryLocation) String() string {
	return bigqueryScheme + strings.Join([]string{l.ProjectID, l.DatasetID, l.TableID}, "/")
}

type archiveRow struct {
	SavedAt    time.Time `bigquery:"saved_at"`
	Transcript string    `bigquery:"transcript"`
}

func (r *archiveRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"saved_at":   r.SavedAt,
		"transcript": r.Transcript,
	}, "", nil
}

// Archive appends every saved snapshot as a new BigQuery row and loads the
// most recent one. Older rows stay as history.
type Archive struct {
	bq       adapter.BigQuery
	location BigQueryLocation
	now      func() time.Time
}

// NewArchive prepares the archive table and returns the repository
func NewArchive(ctx context.Context, bq adapter.BigQuery, loc BigQueryLocation) (*Archive, error) {
	schema, err := bigquery.InferSchema(archiveRow{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer archive schema")
	}
	if err := bq.EnsureTable(ctx, loc.DatasetID, loc.TableID, schema); err != nil {
		return nil, err
	}

	return &Archive{
		bq:       bq,
		location: loc,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Archive) Location() string {
	return r.location.String()
}

func (r *Archive) Load(ctx context.Context) (model.Transcript, bool, error) {
	query := "SELECT transcript FROM `" + r.location.ProjectID + "." + r.location.DatasetID + "." + r.location.TableID +
		"` ORDER BY saved_at DESC LIMIT 1"

	rows, err := r.bq.Query(ctx, query)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to query latest snapshot", goerr.V("location", r.Location()))
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	raw, ok := rows[0]["transcript"].(string)
	if !ok {
		return nil, false, goerr.New("malformed snapshot", goerr.V("location", r.Location()))
	}

	transcript, err := decode([]byte(raw), r.Location())
	if err != nil {
		return nil, false, err
	}
	return transcript, true, nil
}

func (r *Archive) Save(ctx context.Context, transcript model.Transcript) error {
	data, err := encode(transcript)
	if err != nil {
		return err
	}

	row := &archiveRow{
		SavedAt:    r.now(),
		Transcript: string(data),
	}
	if err := r.bq.Insert(ctx, r.location.DatasetID, r.location.TableID, row); err != nil {
		return goerr.Wrap(err, "failed to archive snapshot", goerr.V("location", r.Location()))
	}
	return nil
}

func (r *Archive) Close() error {
	return r.bq.Close()
}

func parseBigQueryLocation(location string) (BigQueryLocation, error) {
	rest, _ := strings.CutPrefix(location, bigqueryScheme)
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return BigQueryLocation{}, goerr.Wrap(ErrInvalidLocation,
			"expected bigquery://<project>/<dataset>/<table>",
			goerr.V("location", location))
	}
	for _, p := range parts {
		if p == "" {
			return BigQueryLocation{}, goerr.Wrap(ErrInvalidLocation, "empty path element in BigQuery location",
				goerr.V("location", location))
		}
	}

	return BigQueryLocation{
		ProjectID: parts[0],
		DatasetID: parts[1],
		TableID:   parts[2],
	}, nil
}
