package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/experiment"
	"github.com/uplift-labs/uplift/internal/models"
	"github.com/uplift-labs/uplift/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants   string
		weights    string
		metric     string
		expType    string
		minSample  int
		confidence float64
		allocation float64
		duration   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new experiment in draft state.

Examples:
  uplift create hero --variants "Control,Bold CTA" --metric purchase
  uplift create pricing --variants "A,B,C" --weights "50,25,25" --metric signup
  uplift create promo --variants "A,B" --metric purchase --allocation 20 --duration 336h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			variantNames, err := resolveVariants(variants)
			if err != nil {
				return err
			}

			variantWeights, err := resolveWeights(weights, len(variantNames))
			if err != nil {
				return err
			}

			if confidence == 0 {
				confidence = cfg.ConfidenceLevel
			}

			exp := &models.Experiment{
				Name:          name,
				Type:          models.ExperimentType(expType),
				PrimaryMetric: metric,
				Config: models.ExperimentConfig{
					Duration:          duration,
					MinSampleSize:     minSample,
					ConfidenceLevel:   confidence,
					TrafficAllocation: allocation,
				},
			}
			for i, vn := range variantNames {
				exp.Variants = append(exp.Variants, models.Variant{
					Name:   vn,
					Weight: variantWeights[i],
				})
			}

			return withEngine(func(eng *experiment.Engine, _ *store.SQLiteStore) error {
				id, err := eng.Create(context.Background(), exp)
				if err != nil {
					return err
				}
				fmt.Printf("Created experiment '%s' (%s) with %d variants:\n", name, id, len(exp.Variants))
				for _, v := range exp.Variants {
					fmt.Printf("  %s: %s (%.0f%%)\n", v.ID, v.Name, v.Weight)
				}
				fmt.Println("\nThe experiment is in draft state. Run 'uplift start' to begin bucketing.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variant names (prompted when omitted)")
	cmd.Flags().StringVarP(&weights, "weights", "w", "", "comma-separated traffic weights summing to 100 (default: equal split)")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "primary conversion metric, e.g. purchase (required)")
	cmd.Flags().StringVar(&expType, "type", string(models.ExperimentSimple), "experiment type (simple, multivariate, personalization, adaptive)")
	cmd.Flags().IntVar(&minSample, "min-sample", 0, "minimum sample size per variant")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "confidence level, e.g. 0.95")
	cmd.Flags().Float64Var(&allocation, "allocation", 0, "traffic allocation percent (default 100)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "maximum experiment duration, e.g. 336h")
	cmd.MarkFlagRequired("metric")

	return cmd
}

// resolveVariants parses the flag or falls back to interactive entry.
func resolveVariants(flag string) ([]string, error) {
	if flag != "" {
		names := strings.Split(flag, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		if len(names) < 2 {
			return nil, errors.New("need at least 2 variants. Example: --variants \"A,B\"")
		}
		return names, nil
	}

	var names []string
	for {
		prompt := promptui.Prompt{
			Label: fmt.Sprintf("Variant %d name (empty to finish)", len(names)+1),
		}
		name, err := prompt.Run()
		if err == promptui.ErrInterrupt {
			return nil, errors.New("canceled")
		}
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			if len(names) >= 2 {
				return names, nil
			}
			fmt.Println("Need at least 2 variants.")
			continue
		}
		names = append(names, name)
	}
}

func resolveWeights(flag string, n int) ([]float64, error) {
	if flag == "" {
		out := make([]float64, n)
		for i := range out {
			out[i] = 100.0 / float64(n)
		}
		return out, nil
	}

	parts := strings.Split(flag, ",")
	if len(parts) != n {
		return nil, errors.Newf("got %d weights for %d variants", len(parts), n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid weight %q", p)
		}
		out[i] = w
	}
	return out, nil
}
