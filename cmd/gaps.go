package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/matching"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List the skills stored postings ask for that the profile lacks",
	Run: func(cmd *cobra.Command, _ []string) {
		gaps(cmd)
	},
}

func init() {
	rootCmd.AddCommand(gapsCmd)

	gapsCmd.Flags().IntP("top", "n", 10, "number of skills to print")
}

func gaps(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	profile, err := loadProfile(config, logger)
	if err != nil {
		logger.Fatal("loading the profile", zap.Error(err))
	}

	store, err := openStore(ctx, config, logger, false)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer store.Close()

	postings := store.All()
	if len(postings) == 0 {
		logger.Info("exiting", zap.String("reason", "no stored postings"))
		return
	}

	// Gaps are tallied over every stored posting, so they use the
	// deterministic matcher rather than one inference call per posting.
	counts := matching.New(nil, logger, config.AI.MaxLogLength).GetSkillGaps(ctx, postings, profile)

	top, _ := cmd.Flags().GetInt("top")
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Skill gaps across %d stored postings:\n", len(postings))
	for i, c := range counts {
		fmt.Fprintf(out, "%2d. %s (%d)\n", i+1, c.Skill, c.Count)
	}
}
