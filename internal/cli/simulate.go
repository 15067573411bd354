package cli

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

func init() {
	rootCmd.AddCommand(newSimulateCmd())
}

func newSimulateCmd() *cobra.Command {
	var (
		users int
		rates string
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "simulate <experiment-id>",
		Short: "Feed a synthetic population through an experiment",
		Long: `Feed a synthetic population through an experiment: every simulated
user is bucketed deterministically, then converts with the per-variant
probability given by --rates (in variant declaration order).

Example:
  uplift simulate 4f2a... --users 1000 --rates "0.10,0.12"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID := args[0]

			return withEngine(func(eng *experiment.Engine, s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, experimentID)
				if err == store.ErrNotFound {
					return fmt.Errorf("experiment '%s' not found", experimentID)
				}
				if err != nil {
					return err
				}

				rateByVariant, err := parseRates(rates, exp)
				if err != nil {
					return err
				}

				rng := rand.New(rand.NewSource(seed))
				converted := 0
				for i := 0; i < users; i++ {
					userID := fmt.Sprintf("sim-user-%d", i)
					variantID, ok, err := eng.GetVariant(ctx, userID, experimentID)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					if rng.Float64() < rateByVariant[variantID] {
						converted++
						err := eng.RecordConversion(ctx, userID, models.ConversionEvent{
							Type:  exp.PrimaryMetric,
							Value: 1,
						})
						if err != nil {
							return err
						}
					}
				}

				fmt.Printf("Simulated %d users, %d conversions.\n", users, converted)
				fmt.Printf("Run 'uplift results %s' to inspect the outcome.\n", experimentID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&users, "users", 1000, "number of synthetic users")
	cmd.Flags().StringVar(&rates, "rates", "", "comma-separated true conversion rate per variant (required)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for conversion draws")
	cmd.MarkFlagRequired("rates")
	return cmd
}

func parseRates(flag string, exp *models.Experiment) (map[string]float64, error) {
	parts := strings.Split(flag, ",")
	if len(parts) != len(exp.Variants) {
		return nil, errors.Newf("got %d rates for %d variants", len(parts), len(exp.Variants))
	}
	out := make(map[string]float64, len(parts))
	for i, p := range parts {
		rate, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rate %q", p)
		}
		if rate < 0 || rate > 1 {
			return nil, errors.Newf("rate %q out of [0,1]", p)
		}
		out[exp.Variants[i].ID] = rate
	}
	return out, nil
}
