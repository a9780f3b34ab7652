package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the supermoan daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides and for environments where a file is awkward. Defaults
// and validation are centralized here so the rest of the code can assume
// a well-formed config.
type Config struct {
	// Input device configuration
	Input InputConfig `yaml:"input"`

	// Movement-to-intensity scaling
	Scaling ScalingFileConfig `yaml:"scaling"`

	// Sound playback configuration
	Sound SoundConfig `yaml:"sound"`

	// Shutdown-time statistics report
	Stats StatsConfig `yaml:"stats"`

	// IPC configuration (used by moanctl)
	IPC IPCConfig `yaml:"ipc"`

	// Live stats WebSocket server
	StatsWS StatsWSConfig `yaml:"stats_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Device string `yaml:"device"` // Linux input event device, e.g. /dev/input/event4
}

// ScalingFileConfig is the user-facing scaling configuration as represented
// in YAML. It maps 1:1 to the ScalingConfig used by the intensity mapper.
type ScalingFileConfig struct {
	MinThreshold float64 `yaml:"min_threshold"`
	MaxThreshold float64 `yaml:"max_threshold"`
	LogBase      float64 `yaml:"log_base"`
}

type SoundConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`     // Directory containing 1.wav .. 10.wav
	Backend string `yaml:"backend"` // "aplay" or "beep"
}

type StatsConfig struct {
	Report bool `yaml:"report"` // Print the intensity histogram at shutdown
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StatsWSConfig struct {
	Port int `yaml:"port"` // 0 disables the WebSocket server
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Device: "",
		},
		Scaling: ScalingFileConfig{
			MinThreshold: defaultMinThreshold,
			MaxThreshold: defaultMaxThreshold,
			LogBase:      defaultLogBase,
		},
		Sound: SoundConfig{
			Enabled: true,
			Dir:     defaultSoundDir,
			Backend: backendAplay,
		},
		Stats: StatsConfig{
			Report: false,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/supermoan.sock",
		},
		StatsWS: StatsWSConfig{
			Port: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - Values not present in the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values to apply on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	InputDevice *string

	MinThreshold *float64
	MaxThreshold *float64
	LogBase      *float64

	SoundEnabled *bool
	SoundDir     *string
	SoundBackend *string

	StatsReport *bool

	IPCSocketPath *string
	StatsWSPort   *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Device = *o.InputDevice
	}

	if o.MinThreshold != nil {
		cfg.Scaling.MinThreshold = *o.MinThreshold
	}
	if o.MaxThreshold != nil {
		cfg.Scaling.MaxThreshold = *o.MaxThreshold
	}
	if o.LogBase != nil {
		cfg.Scaling.LogBase = *o.LogBase
	}

	if o.SoundEnabled != nil {
		cfg.Sound.Enabled = *o.SoundEnabled
	}
	if o.SoundDir != nil {
		cfg.Sound.Dir = *o.SoundDir
	}
	if o.SoundBackend != nil {
		cfg.Sound.Backend = *o.SoundBackend
	}

	if o.StatsReport != nil {
		cfg.Stats.Report = *o.StatsReport
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StatsWSPort != nil {
		cfg.StatsWS.Port = *o.StatsWSPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
//
// The intensity mapper and the playback path assume these invariants hold;
// invalid configuration must never reach them.
func (c *Config) Validate() error {
	// Input
	if c.Input.Device == "" {
		return errors.New("input.device must not be empty (use -list-devices to find one)")
	}

	// Scaling
	if c.Scaling.MinThreshold <= 0 {
		return errors.New("scaling.min_threshold must be > 0")
	}
	if c.Scaling.MaxThreshold <= c.Scaling.MinThreshold {
		return errors.New("scaling.max_threshold must be > scaling.min_threshold")
	}
	if c.Scaling.LogBase <= 1 {
		return errors.New("scaling.log_base must be > 1")
	}

	// Sound
	if c.Sound.Backend != backendAplay && c.Sound.Backend != backendBeep {
		return fmt.Errorf("sound.backend must be %q or %q", backendAplay, backendBeep)
	}
	if c.Sound.Enabled {
		if c.Sound.Dir == "" {
			return errors.New("sound.dir must not be empty when sound.enabled is true")
		}
		if err := validateSoundDir(ExpandPath(c.Sound.Dir)); err != nil {
			return err
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Stats WebSocket
	if c.StatsWS.Port < 0 || c.StatsWS.Port > 65535 {
		return errors.New("stats_ws.port must be between 0 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToScalingConfig converts the file config into the internal mapper config.
func (c *Config) ToScalingConfig() ScalingConfig {
	return ScalingConfig{
		MinThreshold: c.Scaling.MinThreshold,
		MaxThreshold: c.Scaling.MaxThreshold,
		LogBase:      c.Scaling.LogBase,
	}
}

// validateSoundDir checks that dir exists and contains readable wav files
// named 1.wav through 10.wav. Missing files are reported together so the
// user can fix them in one pass.
func validateSoundDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access sound directory %q: %w", dir, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", dir)
	}

	var missing []string
	for level := minIntensity; level <= maxIntensity; level++ {
		p := soundFilePath(dir, level)
		f, err := os.Open(p)
		if err != nil {
			missing = append(missing, p)
			continue
		}
		f.Close()
	}
	if len(missing) > 0 {
		return fmt.Errorf("sound directory must contain wav files named %d.wav through %d.wav; missing or unreadable: %v",
			minIntensity, maxIntensity, missing)
	}
	return nil
}

// soundFilePath returns the clip path for an intensity level.
func soundFilePath(dir string, level int) string {
	return filepath.Join(dir, fmt.Sprintf("%d.wav", level))
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
