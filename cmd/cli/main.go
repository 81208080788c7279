package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	serverURL   string
	noAutoStart bool
	client      *apiClient
	rootCmd     = &cobra.Command{
		Use:   "nitro",
		Short: "Nitro CLI - media downloader built on yt-dlp",
		Long: `A command-line interface for the Nitro download server.

Nitro provisions yt-dlp and its companion tools through Homebrew, inspects
media URLs and queues downloads with the streams you pick.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client = newAPIClient(serverURL)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(prefCmd)
	rootCmd.AddCommand(logsCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// fail prints err and exits
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// printStructured writes v as indented JSON or YAML. YAML keys follow the
// JSON field names.
func printStructured(v interface{}, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case "json":
		fmt.Println(string(data))
		return nil
	case "yaml":
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	}
	return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
}

// outputFormat reads and validates the -o flag
func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(format)
	switch format {
	case "table", "json", "yaml":
		return format
	}
	fail(fmt.Errorf("unknown output format %q (use table, json or yaml)", format))
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
