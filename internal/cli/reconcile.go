package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathanmorav/unified-dashboard/internal/app"
)

func newReconcileCmd() *cobra.Command {
	var (
		resourceType string
		daysBack     int
		start        string
		end          string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a reconciliation sweep against the payment provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.ReconciliationOptions{
				ResourceType: resourceType,
				DaysBack:     daysBack,
			}

			if daysBack == 0 {
				if start == "" || end == "" {
					return fmt.Errorf("either --days-back or both --start and --end are required")
				}
				parsedStart, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				parsedEnd, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				opts.Start = parsedStart
				opts.End = parsedEnd
			}

			return app.RunReconciliation(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&resourceType, "resource-type", "transfer", "Resource type to reconcile")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "Reconcile trailing day windows instead of an explicit range")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC3339)")

	return cmd
}
