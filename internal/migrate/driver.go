// Package migrate drives the reader -> validator -> batcher pipeline.
package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"vehicle-loader/internal/logging"
	"vehicle-loader/internal/record"
	"vehicle-loader/internal/util"

	"github.com/Knetic/govaluate"
)

// DefaultBatchSize is the number of validated records accumulated before a
// flush when no capacity is configured.
const DefaultBatchSize = 10000

// RowSource yields normalized rows one at a time, returning io.EOF once the
// underlying input is exhausted. Sources are single-pass.
type RowSource interface {
	Next() (map[string]interface{}, error)
}

// Inserter persists one batch of listings in a single transaction and assigns
// storage-generated identities to the records.
type Inserter interface {
	Insert(ctx context.Context, batch []*record.Listing) error
}

// RejectSink captures rows that failed filtering or validation.
type RejectSink interface {
	Write(row map[string]interface{}, cause error) error
}

// Summary reports the outcome of one migration run.
type Summary struct {
	RowsRead     int64 // rows pulled from the source
	RowsParsed   int64 // rows that passed validation
	RowsInserted int64 // rows flushed to the inserter
	RowsFiltered int64 // rows dropped by the filter expression
	RowsRejected int64 // rows that failed filtering or validation
	Batches      int64 // insert calls performed
}

// Options configures one migration run.
type Options struct {
	// BatchSize is the batch capacity; DefaultBatchSize when <= 0.
	BatchSize int
	// MaxRows bounds the number of validated rows parsed; 0 means unbounded.
	MaxRows int64
	// Filter is an optional expression evaluated against each normalized row
	// before validation; rows evaluating false are skipped.
	Filter string
	// Out receives progress lines, per-row failure output and the final
	// summary. Defaults to os.Stdout.
	Out io.Writer
}

// Driver walks the states {READING, ACCUMULATING, FLUSHING, DONE}: pull a
// row, validate it (skipping failures row-locally), accumulate up to the
// batch capacity, flush, repeat until the source is exhausted or the row
// limit is reached.
type Driver struct {
	src     RowSource
	ins     Inserter   // nil in dry-run mode: batches are counted, not written
	rejects RejectSink // optional
	opts    Options
	filter  *govaluate.EvaluableExpression
	out     io.Writer
}

type driverState int

const (
	stateReading driverState = iota
	stateAccumulating
	stateFlushing
	stateDone
)

// NewDriver validates the options and compiles the filter expression, if any.
func NewDriver(src RowSource, ins Inserter, rejects RejectSink, opts Options) (*Driver, error) {
	if src == nil {
		return nil, fmt.Errorf("migrate: a row source is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRows < 0 {
		opts.MaxRows = 0
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	d := &Driver{src: src, ins: ins, rejects: rejects, opts: opts, out: out}
	if opts.Filter != "" {
		expr, err := govaluate.NewEvaluableExpression(opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("migrate: invalid filter expression '%s': %w", opts.Filter, err)
		}
		d.filter = expr
	}
	return d, nil
}

// Run executes the pipeline to completion. Validation failures are skipped
// row-locally; source and storage failures abort the run with whatever rows
// were already committed remaining committed. The final summary is printed
// even when the run aborts.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	defer func() {
		fmt.Fprintf(d.out, "\ntotal_rows_parsed: %d\ntotal_rows_inserted: %d\n", sum.RowsParsed, sum.RowsInserted)
	}()

	batch := make([]*record.Listing, 0, d.opts.BatchSize)
	exhausted := false
	st := stateReading

	for st != stateDone {
		switch st {
		case stateReading:
			row, err := d.src.Next()
			if err == io.EOF {
				exhausted = true
				st = stateFlushing
				continue
			}
			if err != nil {
				return sum, fmt.Errorf("reading source: %w", err)
			}
			sum.RowsRead++

			if d.filter != nil {
				keep, ferr := d.evalFilter(row)
				if ferr != nil {
					d.reject(row, ferr, &sum)
					continue
				}
				if !keep {
					sum.RowsFiltered++
					continue
				}
			}

			input, verr := record.ParseRow(row)
			if verr != nil {
				d.reject(row, verr, &sum)
				continue
			}

			batch = append(batch, input.Promote())
			sum.RowsParsed++
			fmt.Fprintf(d.out, "total_rows_parsed: %d\r", sum.RowsParsed)
			st = stateAccumulating

		case stateAccumulating:
			if len(batch) >= d.opts.BatchSize || d.limitReached(sum.RowsParsed) {
				st = stateFlushing
			} else {
				st = stateReading
			}

		case stateFlushing:
			if len(batch) > 0 {
				logging.Logf(logging.Info, "Flushing batch of %d rows", len(batch))
				if d.ins != nil {
					if err := d.ins.Insert(ctx, batch); err != nil {
						return sum, err
					}
				} else {
					logging.Logf(logging.Info, "DRY RUN: batch of %d rows not written", len(batch))
				}
				sum.RowsInserted += int64(len(batch))
				sum.Batches++
				logging.Logf(logging.Info, "Finished batch insertion, total_rows_inserted: %d", sum.RowsInserted)
				batch = batch[:0]
			}
			if exhausted || d.limitReached(sum.RowsParsed) {
				st = stateDone
			} else {
				st = stateReading
			}
		}
	}

	if sum.RowsRejected > 0 {
		logging.Logf(logging.Warning, "Skipped %d rows that failed filtering or validation", sum.RowsRejected)
	}
	logging.Logf(logging.Info, "Migration finished: %d read, %d parsed, %d inserted in %d batches",
		sum.RowsRead, sum.RowsParsed, sum.RowsInserted, sum.Batches)
	return sum, nil
}

func (d *Driver) limitReached(parsed int64) bool {
	return d.opts.MaxRows > 0 && parsed >= d.opts.MaxRows
}

// evalFilter applies the filter expression to one row. A non-boolean result
// is a row-level error.
func (d *Driver) evalFilter(row map[string]interface{}) (bool, error) {
	result, err := d.filter.Evaluate(row)
	if err != nil {
		return false, fmt.Errorf("filter evaluation failed: %w", err)
	}
	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter returned non-boolean %T (%v)", result, result)
	}
	return keep, nil
}

// reject handles one skipped row: print the cause, the offending row and a
// separator, then hand the row to the reject sink if one is configured.
func (d *Driver) reject(row map[string]interface{}, cause error, sum *Summary) {
	sum.RowsRejected++
	fmt.Fprintf(d.out, "%v\n%s\n%s\n", cause, util.FormatRow(row), strings.Repeat("-", 30))
	logging.Logf(logging.Warning, "Skipping row %d: %v", sum.RowsRead, cause)
	if d.rejects != nil {
		if err := d.rejects.Write(row, cause); err != nil {
			logging.Logf(logging.Error, "Failed to write row %d to reject file: %v", sum.RowsRead, err)
		}
	}
}
