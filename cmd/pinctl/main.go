// Command pinctl is the command-line front end to a running pinagent:
// it writes pin://<command>?k=v activations to the command file and
// prints the JSON result the agent writes back, the CLI equivalent of
// the menu-bar presenter's "invoke by writing a well-known file."
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/southflowpeak/pin/internal/prefs"
)

var (
	configDir    string
	commandFile  string
	responseFile string
	windowID     string
)

var rootCmd = &cobra.Command{
	Use:   "pinctl",
	Short: "CLI for the Pin Agent",
	Long:  `pinctl talks to a running pinagent process through its external command channel.`,
}

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Pin a window (the foreground window if --window is omitted)",
	Run: func(cmd *cobra.Command, args []string) {
		if windowID != "" {
			params := url.Values{}
			params.Set("id", windowID)
			send("pin-window", params)
			return
		}
		send("pin", nil)
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List pin-able windows, front to back in z-order",
	Run: func(cmd *cobra.Command, args []string) {
		send("list-windows", nil)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin",
	Short: "Release the current pin",
	Run: func(cmd *cobra.Command, args []string) {
		send("unpin", nil)
	},
}

var panicCmd = &cobra.Command{
	Use:   "panic",
	Short: "Force-release whatever is pinned, regardless of state",
	Run: func(cmd *cobra.Command, args []string) {
		send("panic", nil)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear an Error state back to Idle",
	Run: func(cmd *cobra.Command, args []string) {
		send("reset", nil)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the agent's current status",
	Run: func(cmd *cobra.Command, args []string) {
		send("status", nil)
	},
}

var opacityCmd = &cobra.Command{
	Use:   "opacity [0.1-1.0]",
	Short: "Set and persist the mirror window's opacity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := strconv.ParseFloat(args[0], 64); err != nil {
			fmt.Fprintf(os.Stderr, "invalid opacity %q: %v\n", args[0], err)
			os.Exit(1)
		}
		params := url.Values{}
		params.Set("value", args[0])
		send("setOpacity", params)
	},
}

func init() {
	defaultDir := prefs.DefaultConfigDir()
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultDir, "pinagent config directory")
	rootCmd.PersistentFlags().StringVar(&commandFile, "command-file", "", "override the command file path")
	rootCmd.PersistentFlags().StringVar(&responseFile, "response-file", "", "override the response file path")
	pinCmd.Flags().StringVar(&windowID, "window", "", "window handle to pin (decimal); omit for foreground window")

	rootCmd.AddCommand(pinCmd, windowsCmd, unpinCmd, panicCmd, resetCmd, statusCmd, opacityCmd)
}

func send(name string, params url.Values) {
	cmdFile := commandFile
	if cmdFile == "" {
		cmdFile = filepath.Join(configDir, "pin-command.txt")
	}
	respFile := responseFile
	if respFile == "" {
		respFile = filepath.Join(configDir, "pin-response.json")
	}

	u := url.URL{Scheme: "pin", Host: name, RawQuery: params.Encode()}
	if err := os.WriteFile(cmdFile, []byte(u.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "writing command file: %v\n", err)
		os.Exit(1)
	}

	data, err := waitForResponse(respFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
	if !responseSucceeded(data) {
		os.Exit(1)
	}
}

// waitForResponse polls the response file until it changes, matching
// pinctl's role as a synchronous client over an asynchronous channel.
func waitForResponse(path string) ([]byte, error) {
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err == nil && info.ModTime().After(lastMod) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading response file: %w", err)
			}
			return data, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("timed out waiting for pinagent response")
}

// responseSucceeded inspects a response's generic JSON shape: a
// top-level "success":false or a top-level "error" (the unknown-command
// shape carries only that field) both mean pinctl should exit non-zero.
// A status response has neither field and counts as success.
func responseSucceeded(data []byte) bool {
	var generic struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &generic); err != nil {
		return true
	}
	if generic.Success != nil {
		return *generic.Success
	}
	return generic.Error == ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
