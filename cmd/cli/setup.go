package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Check and install the required tools",
	Long: `Runs a tool check on the server: Homebrew is located (or installed), then
every tool is verified and installed when missing. Progress is shown live.`,
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		watch, _ := cmd.Flags().GetBool("watch")

		var snap domain.ProvisioningSnapshot
		if watch {
			if err := client.get("/api/v1/tools", &snap); err != nil {
				fail(err)
			}
			if !snap.Running && !snap.Completed {
				fmt.Println("No tool check has run yet. Start one with: nitro setup")
				return
			}
		} else {
			status, err := client.post("/api/v1/tools/check", nil, &snap)
			var apiErr *apiError
			switch {
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
				fmt.Println("A tool check is already running, attaching to it")
			case err != nil:
				fail(err)
			case status != http.StatusAccepted:
				fail(fmt.Errorf("unexpected status %d", status))
			}
		}

		final, err := watchProvisioning(snap)
		if err != nil {
			fail(err)
		}
		if err := final.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Some tools could not be set up:\n%v\n", err)
			os.Exit(2)
		}
	},
}

// watchProvisioning renders tool stream updates until the run completes
func watchProvisioning(initial domain.ProvisioningSnapshot) (domain.ProvisioningSnapshot, error) {
	conn, err := client.dial("/api/v1/tools/stream")
	if err != nil {
		return initial, err
	}
	defer conn.Close()

	p := tea.NewProgram(tui.NewSetupModel(initial))

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					p.Send(tui.ErrorMsg{Err: fmt.Errorf("lost connection to server: %w", err)})
				}
				return
			}
			var snap domain.ProvisioningSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				continue
			}
			p.Send(tui.SnapshotMsg(snap))
		}
	}()

	result, err := p.Run()
	if err != nil {
		return initial, err
	}
	model := result.(tui.SetupModel)
	return model.Snapshot(), model.Err()
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the state of the required tools",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format := outputFormat(cmd)

		var snap domain.ProvisioningSnapshot
		if err := client.get("/api/v1/tools", &snap); err != nil {
			fail(err)
		}

		if format != "table" {
			if err := printStructured(snap, format); err != nil {
				fail(err)
			}
			return
		}

		fmt.Println(tui.RenderManager(snap.PackageManager))
		fmt.Println()
		fmt.Print(tui.RenderTools(snap.Tools, false))
		switch {
		case snap.Running:
			fmt.Println("\nA tool check is running. Follow it with: nitro setup --watch")
		case !snap.Completed:
			fmt.Println("\nNo tool check has run yet. Start one with: nitro setup")
		}
	},
}

func init() {
	setupCmd.Flags().BoolP("watch", "w", false, "Follow a running check instead of starting one")
	toolsCmd.Flags().StringP("output", "o", "table", "Output format (table, json, yaml)")
}
