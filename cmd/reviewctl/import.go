package main

import (
	"fmt"
	"strings"

	"github.com/alejandroruanova/review-insights-service/internal/app"
	"github.com/alejandroruanova/review-insights-service/internal/infrastructure/reviewimport"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var importConnection string

// importCmd loads a review export into a platform connection
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a review export file",
	Long:  `Parse a CSV, JSON, JSONL or XLSX review export, store its reviews under a platform connection and queue enrichment for the owning company.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		connectionID, err := uuid.Parse(importConnection)
		if err != nil {
			return fmt.Errorf("invalid --connection: %w", err)
		}

		return withApp(func(a *app.App) error {
			result, err := a.Importer.Import(cmd.Context(), connectionID, args[0])
			if err != nil {
				return err
			}

			text := fmt.Sprintf("imported %s (%s): %d rows, %d new, %d duplicates, %d store errors, %d bad rows",
				args[0], result.Format, result.TotalRows, result.New, result.Duplicates, result.Failed(), len(result.RowFailures))
			if result.DrainQueued {
				text += "\nenrichment queued"
			}
			return printResult(cmd, text, result)
		})
	},
}

// formatsCmd lists the accepted export formats
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported import formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		formats := reviewimport.NewLoader(nil, log).SupportedFormats()
		return printResult(cmd, strings.Join(formats, "\n"), map[string][]string{"formats": formats})
	},
}

func init() {
	importCmd.Flags().StringVar(&importConnection, "connection", "", "Platform connection id the reviews belong to")
	_ = importCmd.MarkFlagRequired("connection")
}
