package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/appstore/pkg/core/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("appstore %s\n", version.Short())
		fmt.Printf("  Git Commit: %s\n", info.GitCommit)
		fmt.Printf("  Build Date: %s\n", info.BuildDate)
		fmt.Printf("  Go Version: %s\n", info.GoVersion)
		fmt.Printf("  OS/Arch:    %s\n", info.Platform)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
