package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carlog/internal/auth"
	"carlog/internal/config"
	"carlog/internal/upload"
)

var (
	uploadUser     string
	uploadPassword string
	uploadInput    string
	uploadOutput   string
	uploadHeadless bool
)

// uploadCmd runs a full upload without the interactive interface.
var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Upload all spreadsheet rows to the travel-log form",
	Long: `Reads every data row from the input spreadsheet, enters each one into the
travel-log form, submits it, and writes one audit line per field to the
output CSV. Credentials are checked against the configured operator table
before the browser starts.

Example:
  carlog upload --user jsmith --password s3cret --input car_log_input.xlsx`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadUser, "user", "u", "", "Operator username")
	uploadCmd.Flags().StringVarP(&uploadPassword, "password", "p", "", "Operator password")
	uploadCmd.Flags().StringVarP(&uploadInput, "input", "i", "", "Input spreadsheet (.xlsx or .csv), overrides config")
	uploadCmd.Flags().StringVarP(&uploadOutput, "output", "o", "", "Audit log CSV path, overrides config")
	uploadCmd.Flags().BoolVar(&uploadHeadless, "headless", true, "Run the browser headless")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if uploadInput != "" {
		cfg.Input = uploadInput
	}
	if uploadOutput != "" {
		cfg.Output = uploadOutput
	}
	cfg.Browser.Headless = uploadHeadless

	if len(cfg.Auth.Users) > 0 {
		user, password := uploadUser, uploadPassword
		if user == "" {
			user = os.Getenv("CARLOG_USER")
		}
		if password == "" {
			password = os.Getenv("CARLOG_PASSWORD")
		}
		verifier := auth.NewStatic(cfg.Auth.Users)
		if err := verifier.Verify(user, password); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	summary, err := upload.Execute(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("upload run failed: %w", err)
	}

	logger.Info("Upload complete",
		zap.String("run_id", summary.RunID),
		zap.Int("rows_processed", summary.RowsProcessed),
		zap.Int("rows_submitted", summary.RowsSubmitted),
		zap.String("audit_log", cfg.Output))
	fmt.Printf("Processed %d rows (%d submitted): %d matched, %d mismatched, %d failed, %d skipped\n",
		summary.RowsProcessed, summary.RowsSubmitted,
		summary.Matched, summary.Mismatched, summary.Failed, summary.Skipped)
	fmt.Printf("Audit log written to %s\n", cfg.Output)
	return nil
}

// initConfigCmd writes the default configuration to disk for editing.
var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}
