package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "sandboxd",
		Short: "sandboxd runs untrusted scripts inside per-request WebAssembly sandboxes",
		Long:  "sandboxd exposes a sandboxed script evaluator over HTTP, backed by fuel- and memory-bounded WebAssembly instances.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a JSON config file (optional, env vars and defaults apply otherwise)")

	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sandboxd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("sandboxd 0.1.0")
			return nil
		},
	}
}
