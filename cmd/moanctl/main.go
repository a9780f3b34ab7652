package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

// ============================================================================
// moanctl - Command-line IPC Client
// ============================================================================
// This tool sends commands to the supermoan daemon via IPC.
//
// Usage:
//   moanctl ping
//   moanctl stats
//   moanctl sound on
//   moanctl sound off
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/supermoan.sock)
// ============================================================================

// IPCRequest wraps commands for JSON (duplicated from the daemon for a
// standalone binary)
type IPCRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := "/tmp/supermoan.sock"

	// Parse arguments
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle -socket option
	for i := 0; i < len(args); i++ {
		if args[i] == "-socket" && i+1 < len(args) {
			socketPath = args[i+1]
			args = append(args[:i], args[i+2:]...)
			break
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var req IPCRequest
	switch args[0] {
	case "ping":
		req = IPCRequest{Type: "ping"}

	case "stats":
		req = IPCRequest{Type: "stats"}

	case "sound":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Fprintln(os.Stderr, "error: sound requires 'on' or 'off'")
			os.Exit(1)
		}
		data, _ := json.Marshal(map[string]bool{"enabled": args[1] == "on"})
		req = IPCRequest{Type: "set_sound", Data: data}

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if len(resp.Data) > 0 {
		var pretty map[string]any
		if err := json.Unmarshal(resp.Data, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Println("ok")
}

func send(socketPath string, req IPCRequest) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w (is the daemon running?)", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return resp, nil
}

func printUsage() {
	fmt.Println("moanctl - control a running supermoan daemon")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  moanctl [-socket PATH] COMMAND")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  ping          Check that the daemon is alive")
	fmt.Println("  stats         Print live intensity statistics")
	fmt.Println("  sound on      Enable sound playback")
	fmt.Println("  sound off     Disable sound playback (monitoring continues)")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -socket PATH  Unix domain socket path (default: /tmp/supermoan.sock)")
}
