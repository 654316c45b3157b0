package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics of the stored postings",
	Run: func(cmd *cobra.Command, _ []string) {
		stats(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("export", "", "also write a spreadsheet friendly CSV to this path (use - for the default name)")
}

func stats(cmd *cobra.Command) {
	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	store, err := openStore(context.Background(), config, logger, false)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer store.Close()

	s := store.GetStats()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total jobs: %d\n", s.TotalJobs)
	fmt.Fprintf(out, "Average relevance: %.1f\n", s.AvgRelevanceScore)
	fmt.Fprintf(out, "Average match: %.1f\n", s.AvgMatchScore)
	fmt.Fprintf(out, "CSV: %s\nJSON: %s\n", s.CSVFile, s.JSONFile)

	names := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Sources[names[i]] != s.Sources[names[j]] {
			return s.Sources[names[i]] > s.Sources[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Fprintln(out, "Sources:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %d\n", name, s.Sources[name])
	}

	fmt.Fprintf(out, "Top skills: %s\n", strings.Join(s.TopSkills, ", "))

	export, _ := cmd.Flags().GetString("export")
	if export == "" {
		return
	}
	if export == "-" {
		export = ""
	}
	path, err := store.ExportCSV(export)
	if err != nil {
		logger.Fatal("exporting csv", zap.Error(err))
	}
	logger.Info("exported csv", zap.String("path", path))
}
