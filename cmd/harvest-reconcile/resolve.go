// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvest-reconcile/internal/extras"
	"github.com/pdiddy/harvest-reconcile/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <record.yaml>",
	Short: "Show what importing a record would do, without changing the store",
	Long: `Resolve parses one harvested record file, compares it with the duplicates
in the record store, and prints the verdict as JSON: whether the record would
be accepted, which local records would be retired, and the rule that decided.
Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

// resolveOutput is the JSON document printed by resolve.
type resolveOutput struct {
	Record  types.IncomingRecord `json:"record"`
	Verdict types.Verdict        `json:"verdict"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	ctx := context.Background()

	rec, err := extras.ParseFile(args[0], source, slog.Default())
	if err != nil {
		return err
	}

	p, err := openPipeline(ctx, io.Discard)
	if err != nil {
		return err
	}
	defer p.Close()

	verdict, err := p.driver.Resolve(ctx, rec)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resolveOutput{Record: rec, Verdict: verdict})
}

func init() {
	resolveCmd.Flags().String("source", "", "source id the record was harvested from")
	_ = resolveCmd.MarkFlagRequired("source")

	rootCmd.AddCommand(resolveCmd)
}
