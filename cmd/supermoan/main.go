//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("supermoan v%s\n", version)
	fmt.Println("A Linux mouse movement to sound converter")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  supermoan -input <device> [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that converts relative pointer motion (via a Linux input device)")
	fmt.Println("  into a discrete intensity level from 1 to 10 using threshold-bounded")
	fmt.Println("  logarithmic scaling, and plays one short clip per level. Rapid motion")
	fmt.Println("  is coalesced: only the most recent intensity plays, never a backlog.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -input string")
	fmt.Println("        Linux input event device (e.g. /dev/input/event4)")
	fmt.Println()
	fmt.Println("  -list-devices")
	fmt.Println("        List all available input devices and exit")
	fmt.Println()
	fmt.Println("  -min-threshold float")
	fmt.Printf("        Minimum movement threshold (default %.1f)\n", defaultMinThreshold)
	fmt.Println()
	fmt.Println("  -max-threshold float")
	fmt.Printf("        Maximum movement threshold (default %.1f)\n", defaultMaxThreshold)
	fmt.Println()
	fmt.Println("  -log-base float")
	fmt.Printf("        Logarithm base for scaling (default %.1f)\n", defaultLogBase)
	fmt.Println()
	fmt.Println("  -sound-dir string")
	fmt.Printf("        Directory containing wav files 1.wav through 10.wav (default %q)\n", defaultSoundDir)
	fmt.Println()
	fmt.Println("  -sound-backend string")
	fmt.Printf("        Playback backend: %s|%s (default %q)\n", backendAplay, backendBeep, backendAplay)
	fmt.Println()
	fmt.Println("  -no-sound")
	fmt.Println("        Don't play sound files (for testing)")
	fmt.Println()
	fmt.Println("  -debug")
	fmt.Println("        Debug logging plus the intensity histogram at shutdown")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/supermoan.sock\")")
	fmt.Println()
	fmt.Println("  -stats-ws-port int")
	fmt.Println("        Live stats WebSocket port (default 0, disabled)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Find your mouse device")
	fmt.Println("  supermoan -list-devices")
	fmt.Println()
	fmt.Println("  # Start with default scaling")
	fmt.Println("  supermoan -input /dev/input/event4")
	fmt.Println()
	fmt.Println("  # Custom thresholds and histogram report")
	fmt.Println("  supermoan -input /dev/input/event4 -min-threshold 2 -max-threshold 150 -debug")
	fmt.Println()
	fmt.Println("  # In-process playback, live stats over WebSocket")
	fmt.Println("  supermoan -input /dev/input/event4 -sound-backend beep -stats-ws-port 3002")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input device (run as root or add user to 'input' group)")
	fmt.Println("  - The sound directory must contain clips named 1.wav through 10.wav")
	fmt.Println("  - Use moanctl to query live stats or toggle sound at runtime")
	fmt.Println()
}

func main() {
	// Check for version/help flags early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	// Parse command-line flags
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		inputDevice  = flag.String("input", "", "Linux input event device (e.g. /dev/input/event4)")
		listDevices  = flag.Bool("list-devices", false, "List all available input devices and exit")
		minThreshold = flag.Float64("min-threshold", defaultMinThreshold, "Minimum movement threshold")
		maxThreshold = flag.Float64("max-threshold", defaultMaxThreshold, "Maximum movement threshold")
		logBase      = flag.Float64("log-base", defaultLogBase, "Logarithm base for scaling")
		soundDir     = flag.String("sound-dir", defaultSoundDir, "Directory containing wav files 1.wav through 10.wav")
		soundBackend = flag.String("sound-backend", backendAplay, "Playback backend: aplay|beep")
		noSound      = flag.Bool("no-sound", false, "Don't play sound files (for testing)")
		debugMode    = flag.Bool("debug", false, "Debug logging plus the intensity histogram at shutdown")
		ipcSocket    = flag.String("ipc-socket", "/tmp/supermoan.sock", "Unix domain socket path for IPC")
		statsWSPort  = flag.Int("stats-ws-port", 0, "Live stats WebSocket port (0 disables)")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion  = flag.Bool("version", false, "Print version and exit")
		showHelp     = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	if *listDevices {
		if err := listInputDevices(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	// Config file first, then flag overrides on top.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	overrides := FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			overrides.InputDevice = inputDevice
		case "min-threshold":
			overrides.MinThreshold = minThreshold
		case "max-threshold":
			overrides.MaxThreshold = maxThreshold
		case "log-base":
			overrides.LogBase = logBase
		case "sound-dir":
			overrides.SoundDir = soundDir
		case "sound-backend":
			overrides.SoundBackend = soundBackend
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "stats-ws-port":
			overrides.StatsWSPort = statsWSPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	if *noSound {
		disabled := false
		overrides.SoundEnabled = &disabled
	}
	if *debugMode {
		debugLevel := string(LogLevelDebug)
		report := true
		overrides.LogLevel = &debugLevel
		overrides.StatsReport = &report
	}
	overrides.Apply(&cfg)

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger := setupLogger(logLevel)

	if err := run(cfg, logger); err != nil {
		os.Exit(1)
	}
}

// run wires the daemon together and blocks until shutdown.
func run(cfg Config, logger *slog.Logger) error {
	// Open input device
	f, err := os.Open(cfg.Input.Device)
	if err != nil {
		logger.Error("failed to open input device", "device", cfg.Input.Device, "error", err,
			"tip", "run as root or add user to 'input' group")
		return err
	}
	defer f.Close()

	// Select playback backend
	var player SoundPlayer
	if !cfg.Sound.Enabled {
		player = newNullPlayer(logger)
	} else {
		switch cfg.Sound.Backend {
		case backendBeep:
			p, err := newBeepPlayer(ExpandPath(cfg.Sound.Dir), logger)
			if err != nil {
				logger.Error("failed to initialize beep backend", "error", err)
				return err
			}
			player = p
		default:
			player = newAplayPlayer(ExpandPath(cfg.Sound.Dir), logger)
		}
	}

	var soundEnabled atomic.Bool
	soundEnabled.Store(cfg.Sound.Enabled)

	stats := newRunStats()
	mon := newMonitor(cfg.ToScalingConfig(), stats, player, &soundEnabled, logger)

	// Shutdown: the signal handler only cancels the context; the monitor
	// loop observes it and performs the actual stop/join sequence.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	// Auxiliary servers
	g, gctx := errgroup.WithContext(ctx)

	ipc := &ipcHandler{stats: stats, slot: mon.slot, soundEnabled: &soundEnabled}
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, ipc, logger)
	})

	if cfg.StatsWS.Port > 0 {
		ws := newStatsWSServer(stats, logger)
		mon.notify = ws.notifyIntensity
		g.Go(func() error {
			return ws.run(gctx, cfg.StatsWS.Port)
		})
	}

	// Input reader: epoll on the device fd plus a wake eventfd, so shutdown
	// never depends on one more input event arriving.
	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(gctx, f, events, readErr)

	logger.Info("listening",
		"device", cfg.Input.Device,
		"sound_dir", cfg.Sound.Dir,
		"sound_backend", cfg.Sound.Backend,
		"sound_enabled", cfg.Sound.Enabled,
		"min_threshold", cfg.Scaling.MinThreshold,
		"max_threshold", cfg.Scaling.MaxThreshold,
		"log_base", cfg.Scaling.LogBase,
		"ipc_socket", cfg.IPC.SocketPath,
		"stats_ws_port", cfg.StatsWS.Port)

	// The monitor runs on this goroutine; it joins the player loop before
	// returning, so the stats snapshot below is taken after all writes.
	runErr := mon.run(gctx, events, readErr)

	cancel()
	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if cfg.Stats.Report {
		writeStatsReport(os.Stdout, stats.snapshot())
	}

	return runErr
}
