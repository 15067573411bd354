package cli

import (
	"github.com/spf13/cobra"

	"github.com/uplift-labs/uplift/internal/config"
)

var (
	cfg    config.Config
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "uplift",
	Short: "uplift - an experimentation and personalization engine",
	Long: `uplift runs deterministic A/B tests with streaming significance
evaluation, rule-based segmentation, affect estimation and conversion
prediction. Single Go binary, embedded SQLite.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $UPLIFT_DB_PATH or ./uplift.db)")
}
