package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [url]",
	Short: "Show the formats available for a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format := outputFormat(cmd)
		refresh, _ := cmd.Flags().GetBool("refresh")

		var inspection app.Inspection
		_, err := client.post("/api/v1/media/inspect", map[string]interface{}{
			"url":     args[0],
			"refresh": refresh,
		}, &inspection)
		if err != nil {
			fail(err)
		}

		if format != "table" {
			// the raw document is large; structured output keeps the summary
			inspection.Metadata = nil
			if err := printStructured(inspection, format); err != nil {
				fail(err)
			}
			return
		}

		fmt.Println(tui.TitleStyle.Render(inspection.Title))
		if inspection.Duration != "" {
			fmt.Printf("Duration: %s\n", inspection.Duration)
		}
		if inspection.Cached {
			fmt.Println(tui.FaintStyle.Render("(cached metadata, use --refresh to fetch again)"))
		}

		fmt.Println()
		printFormats("VIDEO", inspection.VideoFormats)
		fmt.Println()
		printFormats("AUDIO", inspection.AudioFormats)

		d := inspection.Defaults
		fmt.Printf("\nDefaults: video=%s audio=%s remux=%s\n",
			d.VideoFormatID, d.AudioFormatID, tui.NonEmptyOrDash(d.RemuxTo))
	},
}

func printFormats(kind string, formats []app.FormatOption) {
	if len(formats) == 0 {
		fmt.Printf("No %s formats\n", strings.ToLower(kind))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s ID\tEXT\tDESCRIPTION\n", kind)
	for _, f := range formats {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.FormatID, f.Ext, f.Label)
	}
	w.Flush()
}

// selectionFromFlags returns only the selection fields set on the command
// line; the server fills in the rest from its defaults
func selectionFromFlags(cmd *cobra.Command) map[string]interface{} {
	sel := map[string]interface{}{}
	flags := cmd.Flags()

	if flags.Changed("video") {
		v, _ := flags.GetString("video")
		sel["video_format_id"] = v
	}
	if flags.Changed("audio") {
		v, _ := flags.GetString("audio")
		sel["audio_format_id"] = v
	}
	if flags.Changed("remux") {
		v, _ := flags.GetString("remux")
		if strings.EqualFold(v, "none") {
			v = ""
		}
		sel["remux_to"] = strings.ToLower(v)
	}

	embeds := map[string]string{
		"embed-subs":      "embed_subtitles",
		"embed-thumbnail": "embed_thumbnail",
		"embed-metadata":  "embed_metadata",
		"embed-chapters":  "embed_chapters",
	}
	for flag, field := range embeds {
		if flags.Changed(flag) {
			v, _ := flags.GetBool(flag)
			sel[field] = v
		}
	}
	return sel
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download to the queue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		payload := map[string]interface{}{
			"url": args[0],
		}
		if sel := selectionFromFlags(cmd); len(sel) > 0 {
			payload["selection"] = sel
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			var compiled struct {
				Request domain.DownloadRequest `json:"request"`
			}
			if _, err := client.post("/api/v1/media/compile", payload, &compiled); err != nil {
				fail(err)
			}
			fmt.Println("yt-dlp " + strings.Join(compiled.Request.Args, " "))
			return
		}

		var download domain.Download
		status, err := client.post("/api/v1/downloads", payload, &download)
		if err != nil {
			fail(err)
		}

		if status == http.StatusCreated {
			fmt.Printf("Download added successfully!\n")
		} else {
			fmt.Printf("Already in the queue\n")
		}
		fmt.Printf("ID: %s\n", download.ID)
		fmt.Printf("Title: %s\n", download.Title)
		fmt.Printf("Status: %s\n", download.Status)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all downloads",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format := outputFormat(cmd)
		status, _ := cmd.Flags().GetString("status")

		path := "/api/v1/downloads"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}

		var downloads []domain.Download
		if err := client.get(path, &downloads); err != nil {
			fail(err)
		}

		if format != "table" {
			if err := printStructured(downloads, format); err != nil {
				fail(err)
			}
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tRETRIES\tCREATED")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				truncate(d.ID, 8),
				truncate(tui.NonEmptyOrDash(d.Title), 40),
				tui.StatusStyle(string(d.Status)).Render(string(d.Status)),
				d.RetryCount,
				d.CreatedAt.Local().Format(time.DateTime))
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var stats domain.DownloadStats
		if err := client.get("/api/v1/downloads/stats", &stats); err != nil {
			fail(err)
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:       %d\n", stats.Total)
		fmt.Printf("  Queued:      %d\n", stats.Queued)
		fmt.Printf("  Downloading: %d\n", stats.Downloading)
		fmt.Printf("  Completed:   %d\n", stats.Completed)
		fmt.Printf("  Failed:      %d\n", stats.Failed)
		fmt.Printf("  Cancelled:   %d\n", stats.Cancelled)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format := outputFormat(cmd)
		showLog, _ := cmd.Flags().GetBool("log")

		var download domain.Download
		if err := client.get("/api/v1/downloads/"+args[0], &download); err != nil {
			fail(err)
		}

		if format != "table" {
			if err := printStructured(download, format); err != nil {
				fail(err)
			}
			return
		}

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", download.ID)
		fmt.Printf("  URL:      %s\n", download.URL)
		fmt.Printf("  Title:    %s\n", tui.NonEmptyOrDash(download.Title))
		fmt.Printf("  Status:   %s\n", tui.StatusStyle(string(download.Status)).Render(string(download.Status)))
		fmt.Printf("  Retries:  %d\n", download.RetryCount)
		fmt.Printf("  Created:  %s\n", download.CreatedAt.Local().Format(time.DateTime))
		if download.CompletedAt != nil {
			fmt.Printf("  Finished: %s\n", download.CompletedAt.Local().Format(time.DateTime))
		}
		if download.FilePath != "" {
			fmt.Printf("  File:     %s\n", download.FilePath)
		}
		if download.ErrorMessage != "" {
			fmt.Printf("  Error:    %s\n", download.ErrorMessage)
		}
		fmt.Printf("  Command:  yt-dlp %s\n", strings.Join(download.Args, " "))

		if showLog && download.ProcessLog != "" {
			fmt.Println()
			fmt.Println(tui.FaintStyle.Render(download.ProcessLog))
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if _, err := client.post("/api/v1/downloads/"+args[0]+"/cancel", nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("Download cancelled successfully")
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if _, err := client.post("/api/v1/downloads/"+args[0]+"/retry", nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("Download queued for retry")
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a download record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if err := client.delete("/api/v1/downloads/" + args[0]); err != nil {
			fail(err)
		}
		fmt.Println("Download deleted")
	},
}

func init() {
	inspectCmd.Flags().Bool("refresh", false, "Ignore cached metadata")
	inspectCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")

	addCmd.Flags().String("video", "", "Video format id (default best)")
	addCmd.Flags().String("audio", "", "Audio format id (default best)")
	addCmd.Flags().String("remux", "", "Remux container ("+strings.Join(domain.RemuxContainers, ", ")+", none)")
	addCmd.Flags().Bool("embed-subs", true, "Embed subtitles")
	addCmd.Flags().Bool("embed-thumbnail", true, "Embed the thumbnail")
	addCmd.Flags().Bool("embed-metadata", true, "Embed metadata")
	addCmd.Flags().Bool("embed-chapters", true, "Embed chapters")
	addCmd.Flags().Bool("dry-run", false, "Print the yt-dlp command instead of queueing")

	listCmd.Flags().StringP("status", "s", "", "Filter by status (queued, downloading, completed, failed, cancelled)")
	listCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")

	getCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	getCmd.Flags().Bool("log", false, "Print the yt-dlp output")
}
