package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sykell/link-health/internal/scanner"
	"github.com/sykell/link-health/internal/schedule"
)

func newScanCmd() *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one user's links and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			components, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			defer components.Close()

			return runScan(cmd.Context(), components.Scanner, userID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "id of the user whose links are scanned")
	return cmd
}

func runScan(ctx context.Context, s schedule.UserScanner, userID uint, out io.Writer) error {
	summary, err := s.ScanUser(ctx, userID)
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, scanner.ErrScanInProgress) {
			return fmt.Errorf("a scan for user %d is already running", userID)
		}
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
