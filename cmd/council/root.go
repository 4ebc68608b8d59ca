package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type logFlags struct {
	debug bool
	json  bool
}

// configureLogging installs the process-wide slog handler. Logs always go to
// stderr so stdout stays parseable with --format json.
func configureLogging(f logFlags) {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	if !f.json {
		slog.SetLogLoggerLevel(level)
		return
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newRootCommand() *cobra.Command {
	var lf logFlags

	cmd := &cobra.Command{
		Use:   "council",
		Short: "Multi-auditor document review",
		Long: `council audits a planning document with a panel of role-specific LLM auditors.

Every auditor scores six quality dimensions. Scores are reduced to a PASS/FAIL
decision and strong disagreement escalates to a multi-round council debate.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			configureLogging(lf)
		},
	}

	cmd.PersistentFlags().BoolVar(&lf.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&lf.json, "log-json", false, "Write logs to stderr as JSON lines")

	cmd.AddCommand(newAuditCommand(), newStagesCommand(), newCacheCommand())
	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}
