package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nitrodl/nitro-downloader/internal/tui"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs",
	Long: `View server logs by category: provisioning, queue, error or download.
Without a category the available ones are listed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		if len(args) == 0 {
			var resp struct {
				Categories []string `json:"categories"`
			}
			if err := client.get("/api/v1/logs/categories", &resp); err != nil {
				fail(err)
			}
			fmt.Println(strings.Join(resp.Categories, "\n"))
			return
		}

		category := args[0]
		follow, _ := cmd.Flags().GetBool("follow")
		search, _ := cmd.Flags().GetString("search")
		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")
		export, _ := cmd.Flags().GetBool("export")

		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		if date != "" {
			query.Set("date", date)
		}

		switch {
		case follow:
			if err := followLogs(category); err != nil {
				fail(err)
			}

		case export:
			data, err := client.raw("/api/v1/logs/" + url.PathEscape(category) + "/export?" + query.Encode())
			if err != nil {
				fail(err)
			}
			os.Stdout.Write(data)

		default:
			path := "/api/v1/logs/" + url.PathEscape(category)
			if search != "" {
				query.Set("q", search)
				path += "/search"
			}

			var resp struct {
				Entries []logger.LogEntry `json:"entries"`
			}
			if err := client.get(path+"?"+query.Encode(), &resp); err != nil {
				fail(err)
			}
			for _, entry := range resp.Entries {
				printLogEntry(entry)
			}
		}
	},
}

// followLogs streams new entries until interrupted
func followLogs(category string) error {
	conn, err := client.dial("/api/v1/logs/" + url.PathEscape(category) + "/stream")
	if err != nil {
		return err
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		var entry logger.LogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		printLogEntry(entry)
	}
}

func printLogEntry(entry logger.LogEntry) {
	// raw download output carries no timestamp
	if entry.Timestamp == "" {
		fmt.Println(entry.Message)
		return
	}
	ts := entry.Timestamp
	if len(ts) > 19 {
		ts = ts[:19]
	}
	level := strings.ToUpper(entry.Level)
	style := tui.FaintStyle
	switch level {
	case "ERROR", "FATAL", "PANIC":
		style = tui.StatusStyle("failed")
	case "WARN":
		style = tui.StatusStyle("cancelled")
	}
	line := fmt.Sprintf("%s %s %s", tui.FaintStyle.Render(ts), style.Render(tui.Pad(level, 5)), entry.Message)
	if len(entry.Fields) > 0 {
		if data, err := json.Marshal(entry.Fields); err == nil {
			line += " " + tui.FaintStyle.Render(string(data))
		}
	}
	fmt.Println(line)
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Stream new entries")
	logsCmd.Flags().StringP("search", "q", "", "Only show entries containing this text")
	logsCmd.Flags().String("date", "", "Day to read (YYYY-MM-DD, default today)")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum number of entries")
	logsCmd.Flags().Bool("export", false, "Print the raw log file")
}
