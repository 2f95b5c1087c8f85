package adapter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT is not set")
	}

	datasetID := os.Getenv("TEST_BIGQUERY_DATASET")
	if datasetID == "" {
		t.Skip("TEST_BIGQUERY_DATASET is not set")
	}

	type row struct {
		ID      string    `bigquery:"id"`
		SavedAt time.Time `bigquery:"saved_at"`
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID)
	gt.NoError(t, err).Required()

	schema, err := bigquery.InferSchema(row{})
	gt.NoError(t, err).Required()

	table := "kioku_test"
	gt.NoError(t, client.EnsureTable(ctx, datasetID, table, schema)).Required()
	// second call finds the existing table
	gt.NoError(t, client.EnsureTable(ctx, datasetID, table, schema))

	id := uuid.NewString()
	gt.NoError(t, client.Insert(ctx, datasetID, table, &row{ID: id, SavedAt: time.Now().UTC()})).Required()

	rows, err := client.Query(ctx,
		"SELECT id FROM `"+projectID+"."+datasetID+"."+table+"` WHERE id = @id",
		bigquery.QueryParameter{Name: "id", Value: id},
	)
	gt.NoError(t, err).Required()
	gt.A(t, rows).Length(1)
	t.Logf("row: %v", rows)
}
