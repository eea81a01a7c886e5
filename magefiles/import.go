//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Import builds the CLI and imports every configured harvest source.
func Import() error {
	mg.Deps(Init, Build)
	fmt.Println("[import] Importing harvested records from all configured sources.")
	return sh.RunV(filepath.Join(binDir, binName), "import")
}

// Sources builds the CLI and lists the configured sources with their priority.
func Sources() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "sources")
}
