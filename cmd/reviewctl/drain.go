package main

import (
	"fmt"

	"github.com/alejandroruanova/review-insights-service/internal/app"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	drainQueue   bool
	analyzeQueue bool
)

// drainCmd processes the enrichment backlog of a company
var drainCmd = &cobra.Command{
	Use:   "drain [company-id]",
	Short: "Enrich pending reviews for a company",
	Long:  `Run the enrichment drain for a company in this process, or hand it to the worker with --queue.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid company id: %w", err)
		}

		return withApp(func(a *app.App) error {
			if drainQueue {
				if err := a.Scheduler.EnqueueDrain(cmd.Context(), companyID, 0); err != nil {
					return err
				}
				return printResult(cmd, "drain queued for "+companyID.String(),
					map[string]interface{}{"queued": true, "company_id": companyID})
			}

			result, err := a.Drainer.Drain(cmd.Context(), companyID, 0)
			if err != nil {
				return err
			}
			text := fmt.Sprintf("processed %d, skipped %d, errors %d, remaining %d",
				result.Processed, result.Skipped, result.Errors, result.Remaining)
			return printResult(cmd, text, result)
		})
	},
}

// analyzeCmd enriches a single review
var analyzeCmd = &cobra.Command{
	Use:   "analyze [review-id]",
	Short: "Enrich one review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid review id: %w", err)
		}

		return withApp(func(a *app.App) error {
			if analyzeQueue {
				if err := a.Scheduler.EnqueueAnalyzeReview(cmd.Context(), reviewID); err != nil {
					return err
				}
				return printResult(cmd, "analysis queued for "+reviewID.String(),
					map[string]interface{}{"queued": true, "review_id": reviewID})
			}

			result, err := a.Single.Process(cmd.Context(), reviewID)
			if err != nil {
				return err
			}
			return printResult(cmd, fmt.Sprintf("review %s: %s (%s)", reviewID, result.Status, result.Sentiment), result)
		})
	},
}

func init() {
	drainCmd.Flags().BoolVar(&drainQueue, "queue", false, "Queue the drain for the worker")
	analyzeCmd.Flags().BoolVar(&analyzeQueue, "queue", false, "Queue the analysis for the worker")
}
