package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/cache"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/projectconfig"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the audit result cache",
		Long: `Manage the audit result cache.

The cache stores audit results so that re-auditing an unchanged document with
the same models and templates skips the LLM calls. Results are keyed by model,
template hash, prompt hash and document content.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the audit result cache",
		Long: `Clear all cached audit results from the backend configured in
.council.yaml. The next audit re-runs every auditor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := projectconfig.Load(projectDir)
			if err != nil {
				return err
			}
			store, err := openCache(pc)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			clearer, ok := store.(cache.Clearer)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to clear: cache backend is %s\n", pc.Cache.Backend) //nolint:errcheck
				return nil
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", describeCache(pc)) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&projectDir, "project-dir", ".", "Directory to start the .council.yaml search from")

	return cmd
}

func describeCache(pc *projectconfig.ProjectConfig) string {
	switch pc.Cache.Backend {
	case projectconfig.CacheBackendFile:
		return pc.Resolve(pc.Cache.Dir)
	case projectconfig.CacheBackendBlob:
		return pc.Cache.BlobURL + "/" + pc.Cache.Container
	default:
		return pc.Cache.Backend
	}
}
