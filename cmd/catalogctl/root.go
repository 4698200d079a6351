package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	okLabel     = color.New(color.FgGreen)
	errorLabel  = color.New(color.FgRed)
	bucketLabel = color.New(color.FgCyan, color.Bold)
)

// app carries the global flags shared by every command.
type app struct {
	baseURL    string
	tokenPath  string
	savedDir   string
	jsonOutput bool
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "catalogctl [command] [flags]",
		Short: "Command line client for the streamhub catalog",
		Long: `catalogctl talks to a streamhub api-server and keeps your saved list locally.

Examples:
  # Build the discovery feed from pages 1 to 3
  catalogctl discover --pages 1,2,3

  # Save a title, then see it in the myList bucket
  catalogctl saved add tt0111161
  catalogctl discover --bucket myList

  # Follow catalog changes
  catalogctl watch`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.baseURL, "api", envOr("STREAMHUB_API", "http://localhost:8080"), "API base URL")
	pf.StringVar(&a.tokenPath, "token", defaultPath("token.json"), "token file path")
	pf.StringVar(&a.savedDir, "saved-dir", envOr("STREAMHUB_SAVED_PATH", defaultPath("saved")), "saved list directory")
	pf.BoolVarP(&a.jsonOutput, "json", "j", false, "Output in JSON format")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newAuthCmd(a),
		newContentCmd(a),
		newDiscoverCmd(a),
		newImportCmd(a),
		newSavedCmd(a),
		newWatchCmd(a),
	)
	return root
}

func Execute() {
	root := newRootCmd()
	err := root.Execute()
	if err == nil {
		return
	}
	if jsonOut, _ := root.PersistentFlags().GetBool("json"); jsonOut {
		printJSON(map[string]string{"error": err.Error()})
	} else {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".streamhub", name)
	}
	return filepath.Join(home, ".streamhub", name)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		errorLabel.Fprintf(os.Stderr, "json: %v\n", err)
		return
	}
	os.Stdout.Write(append(b, '\n'))
}
