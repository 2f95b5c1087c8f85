package adapter

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// BigQuery is an interface for the BigQuery operations used by the snapshot archive
type BigQuery interface {
	// EnsureTable creates the table with schema unless it already exists
	EnsureTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error

	// Insert streams rows into the table
	Insert(ctx context.Context, datasetID, tableID string, rows any) error

	// Query runs a query with named parameters and returns all rows
	Query(ctx context.Context, query string, params ...bigquery.QueryParameter) ([]map[string]bigquery.Value, error)

	// Close releases the client
	Close() error
}

type bigqueryClient struct {
	client *bigquery.Client
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("project_id", projectID))
	}

	return &bigqueryClient{client: client}, nil
}

func (bq *bigqueryClient) EnsureTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	tbl := bq.client.Dataset(datasetID).Table(tableID)

	_, err := tbl.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return goerr.Wrap(err, "failed to get table metadata",
			goerr.V("dataset", datasetID),
			goerr.V("table", tableID),
		)
	}

	if err := tbl.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return goerr.Wrap(err, "failed to create table",
			goerr.V("dataset", datasetID),
			goerr.V("table", tableID),
		)
	}
	return nil
}

func (bq *bigqueryClient) Insert(ctx context.Context, datasetID, tableID string, rows any) error {
	inserter := bq.client.Dataset(datasetID).Table(tableID).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert rows",
			goerr.V("dataset", datasetID),
			goerr.V("table", tableID),
		)
	}
	return nil
}

func (bq *bigqueryClient) Query(ctx context.Context, query string, params ...bigquery.QueryParameter) ([]map[string]bigquery.Value, error) {
	q := bq.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query", goerr.V("query", query))
	}

	var results []map[string]bigquery.Value
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result", goerr.V("query", query))
		}
		results = append(results, row)
	}

	return results, nil
}

func (bq *bigqueryClient) Close() error {
	return bq.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
