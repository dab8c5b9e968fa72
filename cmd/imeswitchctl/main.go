// imeswitchctl is the control CLI for imeswitchd.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"imeswitchd/internal/config"
	"imeswitchd/internal/ipc"
)

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "daemon control socket path")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	client := dial()
	defer client.Close()

	switch cmd := flag.Arg(0); cmd {
	case "status":
		cmdStatus(client)
	case "list":
		cmdList(client)
	case "refresh":
		run(client.Refresh())
		fmt.Println("Source list refreshed")
	case "set-latin":
		requireArg("set-latin <source-id>")
		run(client.SetLatin(flag.Arg(1)))
		fmt.Printf("Latin source set to %s\n", flag.Arg(1))
	case "set-last":
		requireArg("set-last <source-id>")
		run(client.SetLast(flag.Arg(1)))
		fmt.Printf("Remembered source set to %s\n", flag.Arg(1))
	case "tap":
		requireArg("tap <on|off>")
		cmdTap(client, flag.Arg(1))
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `imeswitchctl - Control utility for imeswitchd

Usage: imeswitchctl [options] <command> [args]

Commands:
  status               Show switching state and the active source
  list                 List installed selectable input sources
  refresh              Re-enumerate installed input sources
  set-latin <id>       Change the Latin source activated by Escape
  set-last <id>        Override the remembered non-Latin source
  tap <on|off>         Enable or disable the short modifier tap
  help                 Show this help message

Options:
  -config <path>  Path to config file
  -socket <path>  Daemon control socket path`)
}

func dial() *ipc.Client {
	sock := *socketPath
	if sock == "" {
		path := *configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		sock = cfg.IPC.SocketPath
	}

	client, err := ipc.Dial(sock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nIs imeswitchd running?\n", err)
		os.Exit(1)
	}
	return client
}

func run(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func requireArg(usage string) {
	if flag.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: imeswitchctl %s\n", usage)
		os.Exit(1)
	}
}

func cmdStatus(client *ipc.Client) {
	raw, err := client.Status()
	run(err)

	var st struct {
		LatinSourceID  string `json:"latin_source_id"`
		LastNonLatinID string `json:"last_non_latin_source_id"`
		TapEnabled     bool   `json:"tap_enabled"`
		CurrentID      string `json:"current_source_id"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		run(fmt.Errorf("decode status: %w", err))
	}

	fmt.Println("=== imeswitchd Status ===")
	fmt.Printf("Latin source:      %s\n", st.LatinSourceID)
	fmt.Printf("Remembered source: %s\n", orNone(st.LastNonLatinID))
	fmt.Printf("Active source:     %s\n", orNone(st.CurrentID))
	fmt.Printf("Tap gesture:       %s\n", onOff(st.TapEnabled))
}

func cmdList(client *ipc.Client) {
	sources, err := client.List()
	run(err)

	if len(sources) == 0 {
		fmt.Println("No selectable input sources found (try 'refresh')")
		return
	}
	for _, src := range sources {
		marker := " "
		if src.Active {
			marker = "*"
		}
		kind := "latin"
		if src.CJKV {
			kind = "cjkv"
		}
		name := src.DisplayName
		if name == "" {
			name = src.ID
		}
		fmt.Printf("%s %-40s %-6s %s\n", marker, src.ID, kind, name)
		if len(src.Languages) > 0 {
			fmt.Printf("  languages: %s\n", strings.Join(src.Languages, ", "))
		}
	}
}

func cmdTap(client *ipc.Client, arg string) {
	var enabled bool
	switch strings.ToLower(arg) {
	case "on", "true", "1", "enable", "enabled":
		enabled = true
	case "off", "false", "0", "disable", "disabled":
		enabled = false
	default:
		if v, err := strconv.ParseBool(arg); err == nil {
			enabled = v
		} else {
			fmt.Fprintln(os.Stderr, "Usage: imeswitchctl tap <on|off>")
			os.Exit(1)
		}
	}
	run(client.SetTap(enabled))
	fmt.Printf("Tap gesture %s\n", onOff(enabled))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
