package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/appstore/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the applications in the catalog",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cat, err := catalog.FromConfig(cfg.Apps)
	if err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	fmt.Printf("%-28s  %-28s  %s\n", "NAME", "PACKAGE", "MODULE")
	for _, e := range cat.Entries() {
		module := e.Module
		if module == "" {
			module = "-"
		}
		fmt.Printf("%-28s  %-28s  %s\n", e.Name, e.Package, module)
	}
	return nil
}
