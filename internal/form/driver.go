package form

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carlog/internal/config"
	"carlog/internal/types"
)

// dateLayouts are the input formats accepted for date-kind cells.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-2006",
	time.RFC3339,
}

// Driver applies one spreadsheet row to the form. Field lookup, value
// entry, and read-back all go through the column→locator mapping table;
// there are no per-field code paths.
type Driver struct {
	surface    Surface
	site       config.SiteConfig
	mappings   map[string]config.FieldMapping
	dateFormat string
	log        *zap.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewDriver builds a driver over an established page surface.
func NewDriver(surface Surface, cfg *config.Config, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	mappings := make(map[string]config.FieldMapping, len(cfg.Fields))
	for _, f := range cfg.Fields {
		mappings[f.Column] = f
	}
	return &Driver{
		surface:    surface,
		site:       cfg.Site,
		mappings:   mappings,
		dateFormat: cfg.DateFormat,
		log:        log,
		sleep:      time.Sleep,
	}
}

// Open navigates to the form page. Used once at run start and again to
// recover after a failed row.
func (d *Driver) Open(ctx context.Context) error {
	d.log.Info("navigating to form", zap.String("url", d.site.URL))
	return d.surface.Navigate(ctx, d.site.URL)
}

// Apply sets every mapped control for the row and returns one outcome per
// mapped column, in the row's column order. A control that cannot be
// located or set yields a failed outcome and processing continues with the
// next field; Apply never aborts the row by itself.
func (d *Driver) Apply(ctx context.Context, row types.Row) []types.FieldOutcome {
	outcomes := make([]types.FieldOutcome, 0, len(row.Columns))

	for _, column := range row.Columns {
		mapping, known := d.mappings[column]
		if !known {
			continue
		}
		value, _ := row.Value(column)
		outcomes = append(outcomes, d.applyField(ctx, row.Index, mapping, value))

		// Remote rendering is asynchronous relative to the driver; give
		// dependent fields a moment to repopulate.
		d.sleep(d.site.GetSettleDelay())
	}
	return outcomes
}

// applyField locates one control, enters the value, and reads back what
// the control now holds.
func (d *Driver) applyField(ctx context.Context, rowIndex int, mapping config.FieldMapping, value string) types.FieldOutcome {
	outcome := types.FieldOutcome{
		RowIndex: rowIndex,
		Field:    mapping.Column,
		Source:   value,
	}

	if value == "" {
		outcome.Status = types.StatusSkipped
		d.log.Debug("skipping empty cell", zap.Int("row", rowIndex), zap.String("field", mapping.Column))
		return outcome
	}

	control, err := d.surface.Locate(ctx, mapping.Locator, d.site.GetLocateTimeout())
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Err = err.Error()
		d.log.Warn("control not found",
			zap.Int("row", rowIndex),
			zap.String("field", mapping.Column),
			zap.Error(err))
		return outcome
	}

	observed, err := d.enter(control, mapping, value)
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Err = err.Error()
		d.log.Warn("failed to set control",
			zap.Int("row", rowIndex),
			zap.String("field", mapping.Column),
			zap.Error(err))
		return outcome
	}

	// Match against the value as entered: dates are compared after
	// reformatting, checkboxes after truthiness folding. The log keeps the
	// raw source cell.
	outcome.Observed = observed
	outcome.Status = types.Compare(d.entered(mapping, value), observed)
	d.log.Debug("field applied",
		zap.Int("row", rowIndex),
		zap.String("field", mapping.Column),
		zap.String("source", outcome.Source),
		zap.String("observed", observed),
		zap.String("status", string(outcome.Status)))
	return outcome
}

// entered returns the value the driver actually sends for a source cell,
// after kind-appropriate conversion.
func (d *Driver) entered(mapping config.FieldMapping, value string) string {
	switch mapping.Kind {
	case config.KindDate:
		return d.formatDate(value)
	case config.KindCheckbox:
		if truthy(value) {
			return "true"
		}
		return "false"
	default:
		return value
	}
}

// enter performs kind-appropriate entry and returns the observed value.
func (d *Driver) enter(control Control, mapping config.FieldMapping, value string) (string, error) {
	switch mapping.Kind {
	case config.KindSelect:
		options, err := control.Options()
		if err != nil {
			return "", fmt.Errorf("list options: %w", err)
		}
		idx := pickOption(options, value)
		if idx < 0 {
			return "", fmt.Errorf("dropdown has no options")
		}
		return control.SelectOption(idx)

	case config.KindCheckbox:
		if err := control.SetChecked(truthy(value)); err != nil {
			return "", err
		}
		return control.Value()

	case config.KindDate:
		if err := control.SetText(d.formatDate(value)); err != nil {
			return "", err
		}
		return control.Value()

	default: // config.KindText
		if err := control.SetText(value); err != nil {
			return "", err
		}
		return control.Value()
	}
}

// formatDate reformats a date cell to the form's expected layout. A value
// in none of the accepted layouts is entered verbatim.
func (d *Driver) formatDate(value string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(d.dateFormat)
		}
	}
	return value
}

func truthy(value string) bool {
	switch types.Normalize(value) {
	case "true", "yes", "y", "1", "x", "checked":
		return true
	}
	return false
}

// FailRow produces a failed outcome for every mapped column of the row,
// used when the page itself is unreachable and the row is abandoned.
func (d *Driver) FailRow(row types.Row, reason error) []types.FieldOutcome {
	outcomes := make([]types.FieldOutcome, 0, len(row.Columns))
	for _, column := range row.Columns {
		if _, known := d.mappings[column]; !known {
			continue
		}
		value, _ := row.Value(column)
		outcomes = append(outcomes, types.FieldOutcome{
			RowIndex: row.Index,
			Field:    column,
			Source:   value,
			Status:   types.StatusFailed,
			Err:      reason.Error(),
		})
	}
	return outcomes
}

// Submit finalizes the current row's entry: settle, click the submit
// control, and wait (bounded) for the success marker.
func (d *Driver) Submit(ctx context.Context) error {
	d.sleep(d.site.GetSettleDelay())

	submit, err := d.surface.Locate(ctx, d.site.SubmitLocator, d.site.GetLocateTimeout())
	if err != nil {
		return fmt.Errorf("submit control: %w", err)
	}
	if err := submit.Click(); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}

	if d.site.SuccessLocator == "" {
		return nil
	}
	if _, err := d.surface.Locate(ctx, d.site.SuccessLocator, d.site.GetSuccessTimeout()); err != nil {
		return fmt.Errorf("success marker: %w", err)
	}
	return nil
}

// Reset prepares the form for the next row: click the reload control when
// the page offers one, otherwise navigate back to the form URL.
func (d *Driver) Reset(ctx context.Context) error {
	if d.site.ReloadLocator != "" {
		if reload, err := d.surface.Locate(ctx, d.site.ReloadLocator, d.site.GetSuccessTimeout()); err == nil {
			if err := reload.Click(); err == nil {
				d.sleep(d.site.GetBetweenRowDelay())
				return nil
			}
		}
	}
	d.log.Debug("reload control unavailable, re-navigating")
	if err := d.Open(ctx); err != nil {
		return err
	}
	d.sleep(d.site.GetBetweenRowDelay())
	return nil
}
