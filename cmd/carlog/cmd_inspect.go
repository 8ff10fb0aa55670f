package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"carlog/internal/sheet"
)

var inspectInput string

// inspectCmd parses the spreadsheet and prints the rows without touching
// the browser, for checking the file before a run.
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Parse the input spreadsheet and print the rows",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectInput, "input", "i", "", "Input spreadsheet (.xlsx or .csv), overrides config")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if inspectInput != "" {
		cfg.Input = inspectInput
	}

	reader := sheet.NewReader(cfg.Input, cfg.Columns(), cfg.RequiredColumns())
	rows, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.Input, err)
	}

	columns := cfg.Columns()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	header := table.Row{"#"}
	for _, col := range columns {
		header = append(header, col)
	}
	t.AppendHeader(header)
	for _, row := range rows {
		line := table.Row{row.Index}
		for _, col := range columns {
			v, _ := row.Value(col)
			line = append(line, v)
		}
		t.AppendRow(line)
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Printf("%d data rows in %s\n", len(rows), cfg.Input)
	return nil
}
