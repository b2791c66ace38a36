// Command ctf-runner drives a parallel fleet of solver attempts against a
// CTF challenge dataset: it allocates ports, rewrites each challenge's
// docker-compose manifest for isolation, launches and supervises one solver
// child per attempt, and collates the resulting predictions into a run
// report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ctf-runner",
		Short: "Parallel CTF solver execution engine",
		Long:  "ctf-runner orchestrates fleets of autonomous solver attempts across isolated Docker sandboxes, one per (challenge, try_number) pair.",
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to the run configuration YAML file (required)")

	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
