package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nitrodl/nitro-downloader/internal/domain"
)

var prefCmd = &cobra.Command{
	Use:   "pref",
	Short: "Manage stored preferences",
	Long: `Preferences override the default selection used when a download does not
name one. Known keys: default_remux (a container or none), embed_subtitles,
embed_thumbnail, embed_metadata and embed_chapters (true or false).`,
}

var prefListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored preferences",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var prefs []domain.Preference
		if err := client.get("/api/v1/preferences", &prefs); err != nil {
			fail(err)
		}
		if len(prefs) == 0 {
			fmt.Println("No preferences set")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, p := range prefs {
			fmt.Fprintf(w, "%s\t%s\n", p.Key, p.Value)
		}
		w.Flush()
	},
}

var prefGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one preference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var pref domain.Preference
		if err := client.get("/api/v1/preferences/"+args[0], &pref); err != nil {
			fail(err)
		}
		fmt.Println(pref.Value)
	},
}

var prefSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a preference",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var pref domain.Preference
		if err := client.put("/api/v1/preferences/"+args[0], map[string]string{"value": args[1]}, &pref); err != nil {
			fail(err)
		}
		fmt.Printf("%s = %s\n", pref.Key, pref.Value)
	},
}

var prefUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a preference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if err := client.delete("/api/v1/preferences/" + args[0]); err != nil {
			fail(err)
		}
		fmt.Printf("%s removed\n", args[0])
	},
}

func init() {
	prefCmd.AddCommand(prefListCmd)
	prefCmd.AddCommand(prefGetCmd)
	prefCmd.AddCommand(prefSetCmd)
	prefCmd.AddCommand(prefUnsetCmd)
}
