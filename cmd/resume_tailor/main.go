// Package main provides the resume_tailor command: the HTTP API server, a
// one-shot local tailoring run and the ledger migration.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "resume_tailor",
	Short: "Resume tailoring workflow orchestrator",
	Long: `resume_tailor rewrites a resume against a job description with a language model,
validates the draft against the source and renders DOCX and PDF artifacts.

Configuration is read from --config (YAML, JSON or TOML) and TAILOR_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (optional)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
