// Package db persists validated listings into PostgreSQL.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vehicle-loader/internal/logging"
	"vehicle-loader/internal/record"
	"vehicle-loader/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStorage marks any persistence failure. Storage errors are fatal at batch
// granularity: the whole batch is rejected and the run aborts.
var ErrStorage = errors.New("storage failure")

// listingColumns is the insert column list, in parameter order. The id column
// is excluded: it is generated by the database and scanned back on insert.
var listingColumns = []string{
	"url", "region", "region_url", "price", "year", "manufacturer", "model",
	"condition", "cylinders", "fuel", "odometer", "title_status", "transmission",
	"vin", "drive", "size", "type", "paint_color", "image_url", "description",
	"county", "state", "lat", "long", "posting_date",
}

// BatchInserter writes batches of listings to a single table, one transaction
// per batch.
type BatchInserter struct {
	pool      *pgxpool.Pool
	table     string
	insertSQL string
}

// NewBatchInserter creates a connection pool for connStr (environment
// references expanded) targeting the given table.
func NewBatchInserter(ctx context.Context, connStr, table string) (*BatchInserter, error) {
	expanded := util.ExpandEnvUniversal(connStr)
	pool, err := pgxpool.New(ctx, expanded)
	if err != nil {
		masked := util.MaskCredentials(expanded)
		logging.Logf(logging.Error, "Failed to create connection pool (using %s)", masked)
		return nil, fmt.Errorf("%w: creating connection pool (using %s): %v", ErrStorage, masked, err)
	}
	return &BatchInserter{
		pool:      pool,
		table:     table,
		insertSQL: buildInsertSQL(table),
	}, nil
}

// buildInsertSQL renders the parameterized insert statement for one listing.
func buildInsertSQL(table string) string {
	placeholders := make([]string, len(listingColumns))
	for i := range listingColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(listingColumns, ", "),
		strings.Join(placeholders, ", "))
}

// listingArgs lays out one listing's values in listingColumns order. Nil
// pointers become SQL NULLs.
func listingArgs(l *record.Listing) []interface{} {
	return []interface{}{
		l.URL, l.Region, l.RegionURL, l.Price, l.Year, l.Manufacturer, l.Model,
		l.Condition, l.Cylinders, l.Fuel, l.Odometer, l.TitleStatus, l.Transmission,
		l.VIN, l.Drive, l.Size, l.Type, l.PaintColor, l.ImageURL, l.Description,
		l.County, l.State, l.Lat, l.Long, l.PostingDate,
	}
}

// Insert persists the batch in one transaction: begin, queue every insert,
// scan the generated id back into each record, commit. The connection is
// released on every exit path; on any failure the transaction is rolled back
// and the whole batch is rejected.
func (bi *BatchInserter) Insert(ctx context.Context, batch []*record.Listing) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := bi.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction for batch of %d: %v", ErrStorage, len(batch), err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				logging.Logf(logging.Error, "Failed to roll back batch transaction: %v", rbErr)
			}
		}
	}()

	pgBatch := &pgx.Batch{}
	for _, l := range batch {
		pgBatch.Queue(bi.insertSQL, listingArgs(l)...)
	}

	results := tx.SendBatch(ctx, pgBatch)
	for i, l := range batch {
		if err := results.QueryRow().Scan(&l.ID); err != nil {
			_ = results.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				logging.Logf(logging.Error, "Insert into '%s' failed for record %d. PG Error Code: %s, Message: %s, Detail: %s",
					bi.table, i, pgErr.Code, pgErr.Message, pgErr.Detail)
			}
			return fmt.Errorf("%w: insert for record %d of batch failed: %v", ErrStorage, i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("%w: closing batch results: %v", ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing batch of %d: %v", ErrStorage, len(batch), err)
	}
	committed = true

	logging.Logf(logging.Debug, "Committed batch of %d rows into '%s'", len(batch), bi.table)
	return nil
}

// Close releases the connection pool.
func (bi *BatchInserter) Close() {
	bi.pool.Close()
}
