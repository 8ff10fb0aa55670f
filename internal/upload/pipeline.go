package upload

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"carlog/internal/config"
	"carlog/internal/form"
	"carlog/internal/record"
	"carlog/internal/sheet"
	"carlog/internal/types"
)

// Execute assembles the full pipeline from a config and runs it: parse the
// spreadsheet, launch the browser, drive the form for every row, and write
// the audit log. progress may be nil.
func Execute(ctx context.Context, cfg *config.Config, log *zap.Logger, progress func(Event)) (types.Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}

	reader := sheet.NewReader(cfg.Input, cfg.Columns(), cfg.RequiredColumns())
	rows, err := reader.Read()
	if err != nil {
		return types.Summary{}, fmt.Errorf("reading %s: %w", cfg.Input, err)
	}
	if len(rows) == 0 {
		log.Info("no data rows, nothing to upload", zap.String("input", cfg.Input))
	}

	recorder, err := record.NewRecorder(cfg.Output)
	if err != nil {
		return types.Summary{}, fmt.Errorf("opening audit log: %w", err)
	}
	defer func() {
		if err := recorder.Finalize(); err != nil {
			log.Warn("closing audit log", zap.Error(err))
		}
	}()

	session := form.NewSession(cfg.Browser, log)
	if err := session.Start(ctx); err != nil {
		return types.Summary{}, fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if err := session.Shutdown(); err != nil {
			log.Warn("closing browser", zap.Error(err))
		}
	}()

	driver := form.NewDriver(session.Surface(), cfg, log)
	if err := driver.Open(ctx); err != nil {
		return types.Summary{}, fmt.Errorf("opening form: %w", err)
	}

	uploader := NewUploader(driver, recorder, log, progress)
	return uploader.Run(ctx, rows)
}
