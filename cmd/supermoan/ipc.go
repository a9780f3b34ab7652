package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync/atomic"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets external clients query and control the running daemon
// over a Unix domain socket:
//   - Live run statistics without waiting for the shutdown report
//   - Toggling sound playback at runtime (e.g. from a hotkey script)
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "command_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}} or
//     {"status": "error", "error": "msg"}
// ============================================================================

// IPCRequest is the wire format for client commands.
type IPCRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // command-specific payload
}

// setSoundRequest is the payload for the "set_sound" command.
type setSoundRequest struct {
	Enabled bool `json:"enabled"`
}

// ipcHandler resolves IPC commands against daemon state.
type ipcHandler struct {
	stats        *runStats
	slot         *playbackSlot
	soundEnabled *atomic.Bool
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, h *ipcHandler, logger *slog.Logger) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Exit cleanly on shutdown/close.
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}

			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, h, logger)
	}
}

// handleIPCConnection processes a single IPC client connection
func handleIPCConnection(conn net.Conn, h *ipcHandler, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection opened")

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		resp := h.handle([]byte(line))
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

// handle dispatches one request line and builds the response.
func (h *ipcHandler) handle(line []byte) IPCResponse {
	var req IPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}

	switch req.Type {
	case "ping":
		return okResponse(map[string]string{"pong": "supermoan"})

	case "stats":
		snap := h.stats.snapshot()
		overwrites, suppressed := h.slot.counters()
		return okResponse(struct {
			StatsSnapshot
			SlotOverwrites int64 `json:"slot_overwrites"`
			SlotSuppressed int64 `json:"slot_suppressed"`
		}{snap, overwrites, suppressed})

	case "set_sound":
		var body setSoundRequest
		if req.Data == nil {
			return IPCResponse{Status: "error", Error: "set_sound requires a data payload"}
		}
		if err := json.Unmarshal(req.Data, &body); err != nil {
			return IPCResponse{Status: "error", Error: fmt.Sprintf("parse set_sound: %v", err)}
		}
		h.soundEnabled.Store(body.Enabled)
		return okResponse(map[string]bool{"enabled": body.Enabled})

	default:
		return IPCResponse{Status: "error", Error: fmt.Sprintf("unknown command type: %s", req.Type)}
	}
}

func okResponse(data any) IPCResponse {
	b, err := json.Marshal(data)
	if err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("marshal response: %v", err)}
	}
	return IPCResponse{Status: "ok", Data: b}
}

// ============================================================================
// IPC Client Utility
// ============================================================================

// SendIPCRequest sends a single request to the daemon and returns the
// decoded response. Used by moanctl and by tests.
func SendIPCRequest(socketPath string, req IPCRequest) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
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
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}

	return resp, nil
}
