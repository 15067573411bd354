package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show conversion rates, confidence intervals and the significance verdict.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	id := args[0]

	return withEngine(func(eng *experiment.Engine, s *store.SQLiteStore) error {
		ctx := context.Background()

		exp, err := s.GetExperiment(ctx, id)
		if err == store.ErrNotFound {
			return fmt.Errorf("experiment '%s' not found", id)
		}
		if err != nil {
			return err
		}

		results, err := eng.GetResults(ctx, id)
		if err != nil {
			return err
		}

		fmt.Printf("EXPERIMENT: %s\n", exp.Name)
		fmt.Printf("STATUS: %s\n", exp.Status)
		fmt.Printf("METRIC: %s\n", exp.PrimaryMetric)
		fmt.Printf("CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           IMPRESSIONS  CONVERSIONS  RATE     CI")
		fmt.Println(strings.Repeat("─", 64))

		intervals := map[string]models.ConfidenceInterval{}
		for _, ci := range results.Intervals {
			intervals[ci.VariantID] = ci
		}

		for _, row := range results.VariantStats {
			name := variantName(exp, row.VariantID)
			if len(name) > 16 {
				name = name[:13] + "..."
			}
			indicator := ""
			if row.VariantID == results.WinnerVariantID && results.WinnerVariantID != "" {
				indicator = " ← WINNER"
			}
			ci := intervals[row.VariantID]
			ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", ci.Lower*100, ci.Upper*100)
			if row.Impressions == 0 {
				ciStr = "N/A"
			}
			fmt.Printf("%-16s  %-11d  %-11d  %-7s  %s%s\n",
				name,
				row.Impressions,
				row.Conversions,
				formatPercent(row.ConversionRate),
				ciStr,
				indicator,
			)
		}

		fmt.Println()
		if results.Significant {
			fmt.Printf("Statistical significance: p = %.4f (significant)\n", results.PValue)
		} else {
			fmt.Printf("Statistical significance: p = %.4f (not yet significant)\n", results.PValue)
		}
		fmt.Printf("Recommendation: %s\n", results.Recommendation)
		return nil
	})
}

func variantName(exp *models.Experiment, variantID string) string {
	for _, v := range exp.Variants {
		if v.ID == variantID {
			return v.Name
		}
	}
	return variantID
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
