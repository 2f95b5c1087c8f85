package repository

import (
	"context"
	"time"
)

var (
	ParseObjectLocationForTest    = parseObjectLocation
	ParseFirestoreLocationForTest = parseFirestoreLocation
	ParseBigQueryLocationForTest  = parseBigQueryLocation
	ParseSQLiteLocationForTest    = parseSQLiteLocation
)

func (j *Journal) CountForTest(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

func (j *Journal) SetClockForTest(now func() time.Time) {
	j.now = now
}

func (r *Archive) SetClockForTest(now func() time.Time) {
	r.now = now
}

var (
	_ Repository = &File{}
	_ Repository = &Object{}
	_ Repository = &Firestore{}
	_ Repository = &Archive{}
	_ Repository = &Journal{}
)
