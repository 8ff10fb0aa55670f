package upload

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carlog/internal/config"
	"carlog/internal/form"
	"carlog/internal/record"
	"carlog/internal/types"
)

// echoControl accepts whatever text is set and reads it back unchanged.
type echoControl struct {
	value   string
	onClick func()
}

func (c *echoControl) SetText(v string) error           { c.value = v; return nil }
func (c *echoControl) SelectOption(int) (string, error) { return "", fmt.Errorf("not a dropdown") }
func (c *echoControl) Options() ([]string, error)       { return nil, nil }
func (c *echoControl) SetChecked(bool) error            { return nil }
func (c *echoControl) Value() (string, error)           { return c.value, nil }
func (c *echoControl) Click() error {
	if c.onClick != nil {
		c.onClick()
	}
	return nil
}

// fakePage is a page whose controls echo their input. Locators listed in
// absentAfter disappear once that many rows have been submitted, modelling a
// reloaded form that lost a control.
type fakePage struct {
	controls    map[string]*echoControl
	submitted   int
	absentAfter map[string]int
}

func newFakePage() *fakePage {
	p := &fakePage{
		controls:    make(map[string]*echoControl),
		absentAfter: make(map[string]int),
	}
	p.controls["#submit"] = &echoControl{onClick: func() { p.submitted++ }}
	return p
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }

func (p *fakePage) Locate(ctx context.Context, locator string, timeout time.Duration) (form.Control, error) {
	if after, ok := p.absentAfter[locator]; ok && p.submitted >= after {
		return nil, fmt.Errorf("control not found (%s)", locator)
	}
	c, ok := p.controls[locator]
	if !ok {
		c = &echoControl{}
		p.controls[locator] = c
	}
	return c, nil
}

func scenarioConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fields = []config.FieldMapping{
		{Column: "Name", Locator: "#name", Kind: config.KindText, Required: true},
		{Column: "Date", Locator: "#date", Kind: config.KindText, Required: true},
		{Column: "Category", Locator: "#category", Kind: config.KindText, Required: true},
	}
	cfg.Site.SubmitLocator = "#submit"
	cfg.Site.SuccessLocator = ""
	cfg.Site.ReloadLocator = "#reload"
	cfg.Site.SettleDelay = "0s"
	cfg.Site.BetweenRowDelay = "0s"
	return cfg
}

func scenarioRows() []types.Row {
	cols := []string{"Name", "Date", "Category"}
	return []types.Row{
		types.NewRow(1, cols, map[string]string{"Name": "Alice", "Date": "05/12/2024", "Category": "Fleet"}),
		types.NewRow(2, cols, map[string]string{"Name": "Bob", "Date": "05/13/2024", "Category": "Pool"}),
	}
}

func readLog(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return lines
}

func TestScenarioTwoRowsAllMatched(t *testing.T) {
	page := newFakePage()
	cfg := scenarioConfig()
	driver := form.NewDriver(page, cfg, zap.NewNop())

	path := filepath.Join(t.TempDir(), "Submission_Log.csv")
	recorder, err := record.NewRecorder(path)
	require.NoError(t, err)

	u := NewUploader(driver, recorder, zap.NewNop(), nil)
	summary, err := u.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	require.NoError(t, recorder.Finalize())

	assert.Equal(t, 2, summary.RowsProcessed)
	assert.Equal(t, 2, summary.RowsSubmitted)
	assert.Equal(t, 6, summary.FieldsTotal)
	assert.Equal(t, 6, summary.Matched)
	assert.Equal(t, 0, summary.Failed)

	lines := readLog(t, path)
	require.Len(t, lines, 7)
	wantOrder := [][2]string{
		{"1", "Name"}, {"1", "Date"}, {"1", "Category"},
		{"2", "Name"}, {"2", "Date"}, {"2", "Category"},
	}
	for i, want := range wantOrder {
		assert.Equal(t, want[0], lines[i+1][0])
		assert.Equal(t, want[1], lines[i+1][1])
		assert.Equal(t, "matched", lines[i+1][4])
	}
}

func TestScenarioMissingControlOnSecondRow(t *testing.T) {
	page := newFakePage()
	// The reloaded form for row 2 comes back without the category control.
	page.absentAfter["#category"] = 1
	cfg := scenarioConfig()
	driver := form.NewDriver(page, cfg, zap.NewNop())

	path := filepath.Join(t.TempDir(), "Submission_Log.csv")
	recorder, err := record.NewRecorder(path)
	require.NoError(t, err)

	u := NewUploader(driver, recorder, zap.NewNop(), nil)
	summary, err := u.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	require.NoError(t, recorder.Finalize())

	assert.Equal(t, 2, summary.RowsProcessed)
	assert.Equal(t, 6, summary.FieldsTotal)
	assert.Equal(t, 5, summary.Matched)
	assert.Equal(t, 1, summary.Failed)

	lines := readLog(t, path)
	require.Len(t, lines, 7)
	assert.Equal(t, []string{"2", "Category"}, lines[6][:2])
	assert.Equal(t, "failed", lines[6][4])
	for i := 1; i < 6; i++ {
		assert.Equal(t, "matched", lines[i][4])
	}
}
