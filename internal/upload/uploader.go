// Package upload orchestrates a run: it walks the parsed rows, drives the
// form for each one, records every field outcome to the audit log, and
// accumulates the run summary.
package upload

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carlog/internal/form"
	"carlog/internal/types"
)

// Driver is the slice of the form driver the orchestrator needs.
type Driver interface {
	Open(ctx context.Context) error
	Apply(ctx context.Context, row types.Row) []types.FieldOutcome
	FailRow(row types.Row, reason error) []types.FieldOutcome
	Submit(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Recorder persists field outcomes as they happen.
type Recorder interface {
	Record(outcome types.FieldOutcome) error
	Finalize() error
}

// Event reports one recorded field outcome to a progress observer.
type Event struct {
	RunID  string
	Row    int // 1-based position in the run, not the sheet row index
	Total  int
	Field  string
	Status types.Status
}

// Uploader runs rows through a form driver and records the outcomes.
type Uploader struct {
	driver   Driver
	recorder Recorder
	log      *zap.Logger
	progress func(Event)
}

// NewUploader wires an orchestrator. progress may be nil.
func NewUploader(driver Driver, recorder Recorder, log *zap.Logger, progress func(Event)) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{driver: driver, recorder: recorder, log: log, progress: progress}
}

// Run processes every row in order. Field-level failures are recorded and the
// run continues; the returned error is non-nil only when the run could not
// reach the end of the row list (context cancelled, or the form became
// unreachable and recovery failed).
func (u *Uploader) Run(ctx context.Context, rows []types.Row) (types.Summary, error) {
	summary := types.Summary{RunID: uuid.NewString()}
	u.log.Info("run starting",
		zap.String("run_id", summary.RunID),
		zap.Int("rows", len(rows)))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run aborted at row %d: %w", row.Index, err)
		}

		outcomes := u.driver.Apply(ctx, row)
		if err := u.record(summary.RunID, i+1, len(rows), outcomes, &summary); err != nil {
			return summary, err
		}
		summary.RowsProcessed++

		if err := u.driver.Submit(ctx); err != nil {
			u.log.Warn("submit failed",
				zap.Int("row", row.Index),
				zap.Error(err))
			if err := u.recover(ctx, rows[i+1:], summary.RunID, i+2, len(rows), &summary); err != nil {
				return summary, err
			}
			continue
		}
		summary.RowsSubmitted++

		if i < len(rows)-1 {
			if err := u.driver.Reset(ctx); err != nil {
				u.log.Warn("form reload failed",
					zap.Int("row", row.Index),
					zap.Error(err))
				if err := u.recover(ctx, rows[i+1:], summary.RunID, i+2, len(rows), &summary); err != nil {
					return summary, err
				}
			}
		}
	}

	u.log.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("rows_processed", summary.RowsProcessed),
		zap.Int("rows_submitted", summary.RowsSubmitted),
		zap.Int("matched", summary.Matched),
		zap.Int("mismatched", summary.Mismatched),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// recover re-opens the form after a submit or reload failure. If the form is
// unreachable the remaining rows are written to the log as failed and the
// run stops.
func (u *Uploader) recover(ctx context.Context, remaining []types.Row, runID string, nextPos, total int, summary *types.Summary) error {
	if err := u.driver.Open(ctx); err == nil {
		return nil
	}
	u.log.Error("form unreachable, abandoning remaining rows",
		zap.Int("remaining", len(remaining)))
	for i, row := range remaining {
		outcomes := u.driver.FailRow(row, form.ErrNavigation)
		if err := u.record(runID, nextPos+i, total, outcomes, summary); err != nil {
			return err
		}
		summary.RowsProcessed++
	}
	return fmt.Errorf("form unreachable after row failure: %w", form.ErrNavigation)
}

func (u *Uploader) record(runID string, pos, total int, outcomes []types.FieldOutcome, summary *types.Summary) error {
	for _, o := range outcomes {
		if err := u.recorder.Record(o); err != nil {
			return fmt.Errorf("writing audit log: %w", err)
		}
		summary.Add(o)
		if u.progress != nil {
			u.progress(Event{
				RunID:  runID,
				Row:    pos,
				Total:  total,
				Field:  o.Field,
				Status: o.Status,
			})
		}
	}
	return nil
}
