// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/harvest-reconcile/internal/priority"
	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured harvest sources and their effective priority",
	RunE:  runSources,
}

// sourceRow is one line of the sources listing.
type sourceRow struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Priority int    `json:"priority"`
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return writeSources(os.Stdout, cfg.Sources, jsonOutput)
}

func writeSources(w io.Writer, sources []types.SourceConfig, jsonOutput bool) error {
	registry := priority.NewRegistry(sources, slog.Default())
	rows := make([]sourceRow, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, sourceRow{ID: s.ID, Title: s.Title, Priority: registry.PriorityOf(s.ID)})
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return nil
	}
	fmt.Fprintf(w, "%-24s  %8s  %s\n", "Source", "Priority", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range rows {
		fmt.Fprintf(w, "%-24s  %8d  %s\n", r.ID, r.Priority, r.Title)
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live records in the store",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p, err := openPipeline(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer p.Close()

	recs, err := p.store.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-40s  %-16s  %s\n", "ID", "Name", "Source", "Identifier")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range recs {
		name := r.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-40s  %-16s  %s\n", r.StoreID, name, r.SourceID, r.Identifier)
	}
	fmt.Fprintf(os.Stdout, "\n%d records\n", len(recs))
	return nil
}

func init() {
	sourcesCmd.Flags().Bool("json", false, "output as JSON")
	listCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(listCmd)
}
