package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export [experiment-id]",
	Short: "Export raw conversion events",
	Long: `Export raw conversion events in CSV or JSON format, optionally
filtered to one experiment.

Examples:
  uplift export --format csv > conversions.csv
  uplift export 4f2a... --format json > hero-conversions.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	experimentID := ""
	if len(args) == 1 {
		experimentID = args[0]
	}

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		if experimentID != "" {
			if _, err := s.GetExperiment(ctx, experimentID); err == store.ErrNotFound {
				return fmt.Errorf("experiment '%s' not found", experimentID)
			} else if err != nil {
				return err
			}
		}

		events, err := s.ListConversionEvents(ctx, experimentID)
		if err != nil {
			return err
		}

		if exportFormat == "csv" {
			return exportCSV(events)
		}
		return exportJSON(events)
	})
}

func exportCSV(events []models.ConversionEvent) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "type", "value", "user_id", "session_id", "experiment_id", "variant_id", "page"}); err != nil {
		return err
	}

	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.Timestamp.Unix(), 10),
			e.Type,
			strconv.FormatFloat(e.Value, 'f', -1, 64),
			e.UserID,
			e.SessionID,
			e.ExperimentID,
			e.VariantID,
			e.Page,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(events []models.ConversionEvent) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Events []models.ConversionEvent `json:"events"`
	}{Events: events})
}
