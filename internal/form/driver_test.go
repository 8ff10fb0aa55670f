package form

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carlog/internal/config"
	"carlog/internal/types"
)

// fakeControl echoes set values back, the way a plain text input does.
type fakeControl struct {
	value    string
	options  []string
	selected int
	checked  bool
	isCheck  bool
	setErr   error
	clicked  int
}

func (c *fakeControl) SetText(v string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.value = v
	return nil
}

func (c *fakeControl) Options() ([]string, error) { return c.options, nil }

func (c *fakeControl) SelectOption(i int) (string, error) {
	if i < 0 || i >= len(c.options) {
		return "", fmt.Errorf("option index %d out of range", i)
	}
	c.selected = i
	return c.options[i], nil
}

func (c *fakeControl) SetChecked(on bool) error {
	c.checked = on
	return nil
}

func (c *fakeControl) Value() (string, error) {
	if c.isCheck {
		if c.checked {
			return "true", nil
		}
		return "false", nil
	}
	if len(c.options) > 0 {
		return c.options[c.selected], nil
	}
	return c.value, nil
}

func (c *fakeControl) Click() error {
	c.clicked++
	return nil
}

// fakeSurface serves controls by locator; locators in missing simulate a
// control that never appears within the bounded wait.
type fakeSurface struct {
	controls map[string]*fakeControl
	missing  map[string]bool
	navErr   error
	navCount int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		controls: make(map[string]*fakeControl),
		missing:  make(map[string]bool),
	}
}

func (s *fakeSurface) Navigate(ctx context.Context, url string) error {
	s.navCount++
	return s.navErr
}

func (s *fakeSurface) Locate(ctx context.Context, locator string, timeout time.Duration) (Control, error) {
	if s.missing[locator] {
		return nil, fmt.Errorf("control not found (%s): %w", locator, context.DeadlineExceeded)
	}
	c, ok := s.controls[locator]
	if !ok {
		c = &fakeControl{}
		s.controls[locator] = c
	}
	return c, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fields = []config.FieldMapping{
		{Column: "Name", Locator: "#name", Kind: config.KindText, Required: true},
		{Column: "Date", Locator: "#date", Kind: config.KindDate, Required: true},
		{Column: "Category", Locator: "#category", Kind: config.KindSelect, Required: true},
	}
	cfg.Site.SettleDelay = "0s"
	cfg.Site.BetweenRowDelay = "0s"
	return cfg
}

func newTestDriver(surface Surface) *Driver {
	d := NewDriver(surface, testConfig(), zap.NewNop())
	d.sleep = func(time.Duration) {}
	return d
}

func row(index int, cols []string, vals map[string]string) types.Row {
	return types.NewRow(index, cols, vals)
}

func TestApplyYieldsOneOutcomePerMappedColumn(t *testing.T) {
	surface := newFakeSurface()
	surface.controls["#category"] = &fakeControl{options: []string{"Fleet", "Pool"}}
	d := newTestDriver(surface)

	r := row(1, []string{"Name", "Date", "Category", "Unmapped"}, map[string]string{
		"Name": "Alice", "Date": "05/12/2024", "Category": "Fleet", "Unmapped": "x",
	})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.NotEmpty(t, o.Status, "field %s has unset status", o.Field)
	}
}

func TestApplyTextRoundTrip(t *testing.T) {
	d := newTestDriver(newFakeSurface())

	r := row(1, []string{"Name"}, map[string]string{"Name": "Alice"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 1)
	assert.Equal(t, "Alice", outcomes[0].Source)
	assert.Equal(t, "Alice", outcomes[0].Observed)
	assert.Equal(t, types.StatusMatched, outcomes[0].Status)
}

func TestApplyFollowsRowColumnOrder(t *testing.T) {
	surface := newFakeSurface()
	surface.controls["#category"] = &fakeControl{options: []string{"Fleet"}}
	d := newTestDriver(surface)

	// Same mapping table, permuted header.
	r := row(1, []string{"Category", "Name", "Date"}, map[string]string{
		"Category": "Fleet", "Name": "Alice", "Date": "05/12/2024",
	})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "Category", outcomes[0].Field)
	assert.Equal(t, "Name", outcomes[1].Field)
	assert.Equal(t, "Date", outcomes[2].Field)
}

func TestApplyFailureIsolation(t *testing.T) {
	surface := newFakeSurface()
	surface.controls["#category"] = &fakeControl{options: []string{"Fleet"}}
	surface.missing["#date"] = true
	d := newTestDriver(surface)

	r := row(2, []string{"Name", "Date", "Category"}, map[string]string{
		"Name": "Bob", "Date": "05/13/2024", "Category": "Fleet",
	})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 3)
	assert.Equal(t, types.StatusMatched, outcomes[0].Status)
	assert.Equal(t, types.StatusFailed, outcomes[1].Status)
	assert.NotEmpty(t, outcomes[1].Err)
	assert.Equal(t, types.StatusMatched, outcomes[2].Status)
}

func TestApplySkipsEmptyCells(t *testing.T) {
	d := newTestDriver(newFakeSurface())

	r := row(1, []string{"Name", "Date"}, map[string]string{"Name": "", "Date": "05/12/2024"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 2)
	assert.Equal(t, types.StatusSkipped, outcomes[0].Status)
	assert.Equal(t, types.StatusMatched, outcomes[1].Status)
}

func TestApplySetErrorIsFailed(t *testing.T) {
	surface := newFakeSurface()
	surface.controls["#name"] = &fakeControl{setErr: errors.New("element detached")}
	d := newTestDriver(surface)

	r := row(1, []string{"Name"}, map[string]string{"Name": "Alice"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 1)
	assert.Equal(t, types.StatusFailed, outcomes[0].Status)
}

func TestApplyDateReformatting(t *testing.T) {
	surface := newFakeSurface()
	d := newTestDriver(surface)

	r := row(1, []string{"Date"}, map[string]string{"Date": "2024-05-12"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 1)
	// The control received the reformatted date and echoed it back.
	assert.Equal(t, "05/12/2024", outcomes[0].Observed)
	// Raw cell stays in the log; the match is against the entered value.
	assert.Equal(t, "2024-05-12", outcomes[0].Source)
	assert.Equal(t, types.StatusMatched, outcomes[0].Status)
}

func TestApplyUnparseableDateEnteredVerbatim(t *testing.T) {
	surface := newFakeSurface()
	d := newTestDriver(surface)

	r := row(1, []string{"Date"}, map[string]string{"Date": "sometime in May"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 1)
	assert.Equal(t, "sometime in May", outcomes[0].Observed)
	assert.Equal(t, types.StatusMatched, outcomes[0].Status)
}

func TestSelectOptionPolicy(t *testing.T) {
	tests := []struct {
		name       string
		options    []string
		value      string
		wantPick   string
		wantStatus types.Status
	}{
		{"exact match", []string{"Fleet Ops", "Motor Pool"}, "Motor Pool", "Motor Pool", types.StatusMatched},
		{"exact beats partial", []string{"Fleet Operations", "Fleet"}, "fleet", "Fleet", types.StatusMatched},
		{"partial match", []string{"Central Fleet Operations", "Motor Pool"}, "Fleet Operations", "Central Fleet Operations", types.StatusMismatched},
		{"first option fallback", []string{"Alpha", "Beta"}, "Gamma", "Alpha", types.StatusMismatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newFakeSurface()
			surface.controls["#category"] = &fakeControl{options: tt.options}
			d := newTestDriver(surface)

			r := row(1, []string{"Category"}, map[string]string{"Category": tt.value})
			outcomes := d.Apply(context.Background(), r)

			require.Len(t, outcomes, 1)
			assert.Equal(t, tt.wantPick, outcomes[0].Observed)
			assert.Equal(t, tt.wantStatus, outcomes[0].Status)
		})
	}
}

func TestCheckboxEntry(t *testing.T) {
	cfg := testConfig()
	cfg.Fields = []config.FieldMapping{
		{Column: "Billable", Locator: "#billable", Kind: config.KindCheckbox},
	}
	surface := newFakeSurface()
	surface.controls["#billable"] = &fakeControl{isCheck: true}
	d := NewDriver(surface, cfg, zap.NewNop())
	d.sleep = func(time.Duration) {}

	r := row(1, []string{"Billable"}, map[string]string{"Billable": "Yes"})
	outcomes := d.Apply(context.Background(), r)

	require.Len(t, outcomes, 1)
	assert.Equal(t, "Yes", outcomes[0].Source)
	assert.Equal(t, "true", outcomes[0].Observed)
	assert.Equal(t, types.StatusMatched, outcomes[0].Status)
	assert.True(t, surface.controls["#billable"].checked)
}

func TestFailRowCoversEveryMappedField(t *testing.T) {
	d := newTestDriver(newFakeSurface())

	r := row(3, []string{"Name", "Date", "Category", "Unmapped"}, map[string]string{
		"Name": "Cara", "Date": "05/14/2024", "Category": "Pool", "Unmapped": "x",
	})
	outcomes := d.FailRow(r, ErrNavigation)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, types.StatusFailed, o.Status)
		assert.Equal(t, 3, o.RowIndex)
		assert.NotEmpty(t, o.Err)
	}
}

func TestSubmitClicksAndWaitsForSuccess(t *testing.T) {
	cfg := testConfig()
	surface := newFakeSurface()
	d := NewDriver(surface, cfg, zap.NewNop())
	d.sleep = func(time.Duration) {}

	require.NoError(t, d.Submit(context.Background()))
	assert.Equal(t, 1, surface.controls[cfg.Site.SubmitLocator].clicked)
}

func TestSubmitFailsWithoutSubmitControl(t *testing.T) {
	cfg := testConfig()
	surface := newFakeSurface()
	surface.missing[cfg.Site.SubmitLocator] = true
	d := NewDriver(surface, cfg, zap.NewNop())
	d.sleep = func(time.Duration) {}

	assert.Error(t, d.Submit(context.Background()))
}

func TestResetFallsBackToNavigation(t *testing.T) {
	cfg := testConfig()
	surface := newFakeSurface()
	surface.missing[cfg.Site.ReloadLocator] = true
	d := NewDriver(surface, cfg, zap.NewNop())
	d.sleep = func(time.Duration) {}

	require.NoError(t, d.Reset(context.Background()))
	assert.Equal(t, 1, surface.navCount)
}

func TestResetUsesReloadControl(t *testing.T) {
	cfg := testConfig()
	surface := newFakeSurface()
	d := NewDriver(surface, cfg, zap.NewNop())
	d.sleep = func(time.Duration) {}

	require.NoError(t, d.Reset(context.Background()))
	assert.Equal(t, 0, surface.navCount)
	assert.Equal(t, 1, surface.controls[cfg.Site.ReloadLocator].clicked)
}

func TestPickOption(t *testing.T) {
	tests := []struct {
		name    string
		options []string
		value   string
		want    int
	}{
		{"no options", nil, "x", -1},
		{"exact", []string{"A", "B"}, "b", 1},
		{"partial", []string{"Alpha Squad", "Beta"}, "squad", 0},
		{"fallback to first", []string{"A", "B"}, "z", 0},
		{"empty value falls back to first", []string{"A", "B"}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickOption(tt.options, tt.value))
		})
	}
}
