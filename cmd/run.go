package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/config"
	"github.com/spigell/ml-job-radar/internal/filtering"
	"github.com/spigell/ml-job-radar/internal/jobs"
	"github.com/spigell/ml-job-radar/internal/notify"
	"github.com/spigell/ml-job-radar/internal/pipeline"
)

const (
	PromptSend                = "Send the digest"
	PromptSkip                = "Skip notification"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all postings to exclude file"

	testLimit = 10
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, score and store postings once, then send the digest",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-notify", false, "do not send the digest")
	runCmd.Flags().BoolP("test", "t", false, fmt.Sprintf("keep only the first %d scraped postings", testLimit))
	runCmd.Flags().StringSlice("sources", nil, "comma separated sources overriding sources.enabled")
	runCmd.Flags().BoolP("interactive", "i", false, "ask for confirmation before sending the digest")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)
	applySourcesFlag(cmd, config)

	logger.Info("starting the ml-job-radar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	opts := pipelineOptions(config)
	opts.SkipNotify, _ = cmd.Flags().GetBool("no-notify")
	if test, _ := cmd.Flags().GetBool("test"); test {
		opts.TestLimit = testLimit
	}
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		opts.Confirm = confirmDigest(config.ExcludeFile, logger)
	}

	radar, err := newRadar(ctx, config, opts, logger)
	if err != nil {
		logger.Fatal("preparing the run", zap.Error(err))
	}
	defer radar.Close()

	report, err := radar.orchestrator.Run(ctx)
	writeMetrics(radar, config, logger)
	if err != nil {
		logger.Warn("exiting", zap.Error(err))
		return
	}

	logger.Info("exiting",
		zap.String("run_id", report.RunID),
		zap.Int("qualified", report.Qualified),
		zap.Int("persisted", report.Persisted),
		zap.Duration("duration", report.Duration),
	)
}

func applySourcesFlag(cmd *cobra.Command, cfg *config.Config) {
	if !cmd.Flags().Changed("sources") {
		return
	}
	names, _ := cmd.Flags().GetStringSlice("sources")
	names = config.SplitList(names)
	for i := range names {
		names[i] = strings.ToLower(names[i])
	}
	cfg.Sources.Enabled = names
}

// confirmDigest asks the operator what to do with the digest. Dumping and
// excluding return to the prompt.
func confirmDigest(excludeFile string, logger *zap.Logger) pipeline.ConfirmFunc {
	return func(_ context.Context, d notify.Digest) (bool, error) {
		for {
			items := []string{PromptSend, PromptSkip, PromptPostingsToFile}
			if excludeFile != "" && len(d.Jobs) != 0 {
				items = append(items, PromptAppendToExcludeFile)
			}

			prompt := promptui.Select{
				Label: fmt.Sprintf("%d qualified postings. Proceed?", len(d.Jobs)),
				Items: items,
			}

			_, action, err := prompt.Run()
			if err != nil {
				return false, err
			}

			switch action {
			case PromptSend:
				return true, nil
			case PromptSkip:
				return false, nil
			case PromptPostingsToFile:
				filename, err := dumpToTmpFile(d.Jobs)
				if err != nil {
					return false, fmt.Errorf("dump results to file: %w", err)
				}
				logger.Info("dumping result to file", zap.String("filename", filename))
			case PromptAppendToExcludeFile:
				if err := appendToExcludeFile(excludeFile, d.Jobs); err != nil {
					return false, err
				}
				logger.Info("appended to exclude file", zap.String("filename", excludeFile))
			default:
				return false, fmt.Errorf("invalid action: %s", action)
			}
		}
	}
}

func dumpToTmpFile(postings []jobs.Posting) (string, error) {
	f, err := os.CreateTemp("", app+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(postings); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func appendToExcludeFile(path string, postings []jobs.Posting) error {
	excluded, err := filtering.LoadExcludedFile(path)
	if err != nil {
		return err
	}
	excluded.Append(filtering.ToExcluded(postings))
	return excluded.ToFile(path)
}

// redacted copies cfg without credentials for debug output.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if cfg.AI != nil && cfg.AI.Gemini != nil {
		ai := *cfg.AI
		gemini := *cfg.AI.Gemini
		if gemini.APIKey != "" {
			gemini.APIKey = "***"
		}
		ai.Gemini = &gemini
		out.AI = &ai
	}
	if cfg.Notify != nil {
		n := *cfg.Notify
		if n.Email != nil {
			email := *n.Email
			if email.Password != "" {
				email.Password = "***"
			}
			n.Email = &email
		}
		if n.Telegram != nil {
			telegram := *n.Telegram
			if telegram.Token != "" {
				telegram.Token = "***"
			}
			n.Telegram = &telegram
		}
		out.Notify = &n
	}
	if cfg.Storage != nil {
		s := *cfg.Storage
		if s.PostgresURL != "" {
			s.PostgresURL = "***"
		}
		if s.RedisURL != "" {
			s.RedisURL = "***"
		}
		out.Storage = &s
	}
	return out
}
