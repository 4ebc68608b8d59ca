package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/projectconfig"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/template"
)

func newStagesCommand() *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List document stages and the auditors each one requires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := projectconfig.Load(projectDir)
			if err != nil {
				return err
			}
			registry, err := template.LoadRegistry(pc.Resolve(pc.Templates))
			if err != nil {
				return fmt.Errorf("loading templates: %w", err)
			}
			return printStages(cmd.OutOrStdout(), registry)
		},
	}
	cmd.Flags().StringVar(&projectDir, "project-dir", ".", "Directory to start the .council.yaml search from")
	return cmd
}

func printStages(w io.Writer, registry template.Provider) error {
	width := 0
	for _, s := range models.AllStages {
		width = max(width, runewidth.StringWidth(string(s)))
	}
	for _, s := range models.AllStages {
		roles, err := registry.RequiredRoles(s)
		if err != nil {
			return err
		}
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(string(s), width), strings.Join(names, ", ")) //nolint:errcheck
	}
	return nil
}
