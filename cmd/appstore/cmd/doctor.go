package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/appstore/internal/pyenv"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the Python environment",
	Long: `Checks that Python and pip are available, whether a virtual
environment is active and which version of the store package is installed.

Exits with an error if a required check fails.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("App Store Environment")
	fmt.Println("=====================")
	fmt.Println()

	interpreter, err := pyenv.Resolve(cfg.Store.Interpreter)
	if err != nil {
		fmt.Printf("  [-] %v\n\n", err)
	}
	fmt.Printf("Interpreter: %s\n\n", interpreter)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	checker := pyenv.NewChecker(pyenv.Config{
		Interpreter:  interpreter,
		StorePackage: cfg.Store.Package,
	})
	checker.CheckAll(ctx)

	for _, check := range checker.Checks {
		icon := "[+]"
		switch check.Status {
		case pyenv.StatusFailed:
			icon = "[-]"
		case pyenv.StatusWarning:
			icon = "[!]"
		}

		detail := check.Version
		if detail == "" {
			detail = check.Message
		}
		required := ""
		if check.Required {
			required = " (required)"
		}
		fmt.Printf("  %s %-22s %s%s\n", icon, check.Name, detail, required)
	}
	fmt.Println()

	if !checker.AllRequiredOK() {
		return errors.New("required environment checks failed")
	}
	fmt.Println("All required checks passed.")
	return nil
}
