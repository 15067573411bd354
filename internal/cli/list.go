package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Long:  `List all experiments with their status and headline statistics.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		experiments, err := s.ListExperiments(ctx)
		if err != nil {
			return err
		}

		if len(experiments) == 0 {
			fmt.Println("No experiments yet. Create one with 'uplift create'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMETRIC\tVARIANTS\tIMPRESSIONS\tCONVERSIONS\tCREATED")

		for _, exp := range experiments {
			aggregates, err := s.ReadAggregates(ctx, exp.ID)
			if err != nil {
				return err
			}
			var impressions, conversions int64
			for _, row := range aggregates {
				impressions += row.Impressions
				conversions += row.Conversions
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				exp.ID,
				exp.Name,
				strings.ToUpper(string(exp.Status)),
				exp.PrimaryMetric,
				len(exp.Variants),
				impressions,
				conversions,
				exp.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}
