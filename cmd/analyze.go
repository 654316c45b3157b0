package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/matching"
)

const analyzeMaxSkills = 20

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Describe the candidate profile built from the resume and configured skills",
	Run: func(cmd *cobra.Command, _ []string) {
		analyze(cmd)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func analyze(cmd *cobra.Command) {
	ctx := context.Background()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	profile, err := loadProfile(config, logger)
	if err != nil {
		logger.Fatal("loading the profile", zap.Error(err))
	}

	generator, err := newGenerator(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing inference", zap.Error(err))
	}

	analysis := matching.New(generator, logger, config.AI.MaxLogLength).AnalyzeResume(ctx, profile)

	skills := analysis.Skills
	if len(skills) > analyzeMaxSkills {
		skills = skills[:analyzeMaxSkills]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Experience level: %s\n", analysis.ExperienceLevel)
	if analysis.ExperienceYears > 0 {
		fmt.Fprintf(out, "Experience years: %d\n", analysis.ExperienceYears)
	}
	fmt.Fprintf(out, "Domain: %s\n", analysis.Domain)
	fmt.Fprintf(out, "Skills (%d): %s\n", len(analysis.Skills), strings.Join(skills, ", "))
	fmt.Fprintf(out, "Summary: %s\n", analysis.Summary)
}
