// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var retireCmd = &cobra.Command{
	Use:   "retire <store-id>...",
	Short: "Retire records by store id",
	Long: `Retire renames each record to a unique "-deleted" name and then deletes
it, the same way duplicates are retired during import. Unknown ids are
skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetire,
}

func runRetire(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p, err := openPipeline(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer p.Close()

	retired, err := p.driver.Retire(ctx, args)
	if err != nil {
		return err
	}
	if len(retired) < len(args) {
		return fmt.Errorf("%d of %d record(s) not retired", len(args)-len(retired), len(args))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(retireCmd)
}
