package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/config"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/debate"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/events"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/orchestration"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/projectconfig"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/reporting"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/spinner"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/telemetry"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/template"
)

type auditFlags struct {
	projectDir  string
	provider    string
	repliesDir  string
	model       string
	maxParallel int
	maxCalls    int
	noCache     bool
	noDebate    bool
	format      string
	outputPath  string
	junitPath   string
}

func newAuditCommand() *cobra.Command {
	var f auditFlags
	cmd := &cobra.Command{
		Use:   "audit <stage> <document>",
		Short: "Audit a document with the council",
		Long: `Audit a document as the given stage.

Stages: research_brief, market_scan, vision, prd, architecture,
implementation_plan. Settings come from .council.yaml (searched upward from
the project directory), COUNCIL_* environment variables, then flags.

Exit status is 0 when the council passes the document, 1 when it fails it,
and 2 on configuration or runtime errors.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAudit(ctx, cmd.OutOrStdout(), &f, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&f.projectDir, "project-dir", ".", "Directory to start the .council.yaml search from")
	cmd.Flags().StringVar(&f.provider, "provider", "", "Provider: copilot or scripted (overrides .council.yaml)")
	cmd.Flags().StringVar(&f.repliesDir, "replies", "", "Directory of <role>.json replies for the scripted provider")
	cmd.Flags().StringVar(&f.model, "model", "", "Default model for every auditor")
	cmd.Flags().IntVar(&f.maxParallel, "max-parallel", 0, "Maximum concurrent auditors")
	cmd.Flags().IntVar(&f.maxCalls, "max-calls", 0, "Total LLM call budget (0 keeps the configured value)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Skip the result cache")
	cmd.Flags().BoolVar(&f.noDebate, "no-debate", false, "Never escalate to a council debate")
	cmd.Flags().StringVar(&f.format, "format", "text", "Console output format: text or json")
	cmd.Flags().StringVarP(&f.outputPath, "output", "o", "", "Write the result as JSON to this file")
	cmd.Flags().StringVar(&f.junitPath, "junit", "", "Write a JUnit XML report to this file")

	return cmd
}

func runAudit(ctx context.Context, out io.Writer, f *auditFlags, stageArg, docPath string) error {
	logger := slog.Default()

	stage, err := models.ParseStage(stageArg)
	if err != nil {
		return err
	}
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	content, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	pc, err := projectconfig.Load(f.projectDir)
	if err != nil {
		return err
	}
	opts, err := loadOptions(pc, f)
	if err != nil {
		return err
	}

	registry, err := template.LoadRegistry(pc.Resolve(pc.Templates))
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	providerKind := pc.Provider
	if f.provider != "" {
		providerKind = f.provider
	}
	providers, err := newProviders(providerKind, opts.Model, f.repliesDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.close(); err != nil {
			logger.WarnContext(ctx, "closing provider", "error", err)
		}
	}()

	orchOpts := []orchestration.Option{orchestration.WithLogger(logger)}
	for role, p := range providers.roles {
		orchOpts = append(orchOpts, orchestration.WithRoleProvider(role, p))
	}

	if !f.noCache {
		store, err := openCache(pc)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		if store != nil {
			orchOpts = append(orchOpts, orchestration.WithCache(store))
		}
	}

	var progress []events.Sink
	var spin *spinner.Spinner
	if f.format == "text" && progressEnabled() {
		spin = spinner.Start(os.Stderr, fmt.Sprintf("Auditing %s", stage))
		defer spin.Stop()
		progress = append(progress, spin.Sink())
	}

	dispatcher, eventLog, err := openEvents(pc, logger, progress...)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, logger, "event dispatcher", dispatcher)
	if eventLog != "" {
		logger.InfoContext(ctx, "writing events", "path", eventLog)
	}
	orchOpts = append(orchOpts, orchestration.WithPublisher(dispatcher))

	shutdown, err := telemetry.Setup(ctx, pc.Telemetry.ServiceName, pc.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "telemetry shutdown", "error", err)
		}
	}()
	if pc.Telemetry.Endpoint != "" {
		orchOpts = append(orchOpts, orchestration.WithCollector(telemetry.NewOTelCollector(nil)))
	}

	coordinator := debate.NewCoordinator(debate.Options{MaxRounds: opts.MaxDebateRounds}, dispatcher, logger)
	orchOpts = append(orchOpts, orchestration.WithDebate(coordinator, registry))

	orch, err := orchestration.New(providers.fallback, registry, opts, orchOpts...)
	if err != nil {
		return err
	}

	result, err := orch.ExecuteStageAudit(ctx, stage, string(content))
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if err := writeResult(out, f, result); err != nil {
		return err
	}

	if result.Decision() != models.DecisionPass {
		return &AuditFailureError{
			Message: fmt.Sprintf("council decision for %s is %s (%d of %d auditors responded)",
				stage, result.Decision(), len(result.Responses), len(result.Responses)+len(result.FailedRoles)),
		}
	}
	return nil
}

// loadOptions layers .council.yaml, COUNCIL_* variables and flags.
func loadOptions(pc *projectconfig.ProjectConfig, f *auditFlags) (config.Options, error) {
	opts, err := config.Decode(pc.Orchestrator)
	if err != nil {
		return opts, fmt.Errorf("orchestrator options: %w", err)
	}
	if err := config.ApplyEnv(&opts, nil); err != nil {
		return opts, err
	}
	if f.model != "" {
		opts.Model = f.model
	}
	if f.maxParallel > 0 {
		opts.MaxParallel = f.maxParallel
	}
	if f.maxCalls > 0 {
		opts.MaxCallsTotal = f.maxCalls
	}
	if f.noDebate {
		opts.EnableDebate = false
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("orchestrator options: %w", err)
	}
	return opts, nil
}

func writeResult(out io.Writer, f *auditFlags, result *models.AuditResult) error {
	if f.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		reporting.WriteSummary(out, result)
	}

	if f.outputPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		if err := os.WriteFile(f.outputPath, data, 0644); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
	}
	if f.junitPath != "" {
		if err := reporting.WriteJUnitXML(result, f.junitPath); err != nil {
			return fmt.Errorf("writing JUnit report: %w", err)
		}
	}
	return nil
}
