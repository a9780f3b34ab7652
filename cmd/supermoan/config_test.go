package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// makeSoundDir creates a temp directory populated with 1.wav .. 10.wav.
func makeSoundDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for level := minIntensity; level <= maxIntensity; level++ {
		path := filepath.Join(dir, fmt.Sprintf("%d.wav", level))
		if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}

// validTestConfig returns a config that passes Validate.
func validTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Input.Device = "/dev/input/event4"
	cfg.Sound.Dir = makeSoundDir(t)
	return cfg
}

func TestConfigValidate_Valid(t *testing.T) {
	cfg := validTestConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestConfigValidate_RequiresDevice(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.Input.Device = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an empty input device")
	}
}

func TestConfigValidate_ScalingRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min threshold", func(c *Config) { c.Scaling.MinThreshold = 0 }},
		{"negative min threshold", func(c *Config) { c.Scaling.MinThreshold = -1 }},
		{"max below min", func(c *Config) { c.Scaling.MaxThreshold = c.Scaling.MinThreshold - 0.5 }},
		{"max equals min", func(c *Config) { c.Scaling.MaxThreshold = c.Scaling.MinThreshold }},
		{"log base one", func(c *Config) { c.Scaling.LogBase = 1.0 }},
		{"log base below one", func(c *Config) { c.Scaling.LogBase = 0.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted invalid scaling (%s)", tc.name)
			}
		})
	}
}

func TestConfigValidate_UnknownBackend(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.Sound.Backend = "pulse"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted an unknown sound backend")
	}
}

func TestConfigValidate_SoundDirSkippedWhenDisabled(t *testing.T) {
	cfg := validTestConfig(t)
	cfg.Sound.Enabled = false
	cfg.Sound.Dir = "/nonexistent/not/checked"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil (dir not checked when sound disabled)", err)
	}
}

func TestValidateSoundDir_MissingFiles(t *testing.T) {
	dir := makeSoundDir(t)
	if err := os.Remove(filepath.Join(dir, "7.wav")); err != nil {
		t.Fatal(err)
	}

	err := validateSoundDir(dir)
	if err == nil {
		t.Fatal("validateSoundDir accepted a directory with a missing clip")
	}
	if !strings.Contains(err.Error(), "7.wav") {
		t.Errorf("error %q does not name the missing file", err)
	}
}

func TestValidateSoundDir_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := validateSoundDir(f); err == nil {
		t.Error("validateSoundDir accepted a plain file")
	}
}

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
input:
  device: /dev/input/event9
scaling:
  min_threshold: 2.5
  log_base: 3.0
sound:
  backend: beep
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	if cfg.Input.Device != "/dev/input/event9" {
		t.Errorf("device = %q, want /dev/input/event9", cfg.Input.Device)
	}
	if cfg.Scaling.MinThreshold != 2.5 {
		t.Errorf("min threshold = %f, want 2.5", cfg.Scaling.MinThreshold)
	}
	// Unset fields keep their defaults.
	if cfg.Scaling.MaxThreshold != defaultMaxThreshold {
		t.Errorf("max threshold = %f, want default %f", cfg.Scaling.MaxThreshold, float64(defaultMaxThreshold))
	}
	if cfg.Sound.Backend != backendBeep {
		t.Errorf("backend = %q, want %q", cfg.Sound.Backend, backendBeep)
	}
	if cfg.IPC.SocketPath != "/tmp/supermoan.sock" {
		t.Errorf("ipc socket = %q, want default", cfg.IPC.SocketPath)
	}
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scalng:\n  log_base: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfigFile(path); err == nil {
		t.Error("LoadConfigFile accepted a config with a misspelled section")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	device := "/dev/input/event2"
	maxT := 150.0
	enabled := false
	port := 3002

	FlagOverrides{
		InputDevice:  &device,
		MaxThreshold: &maxT,
		SoundEnabled: &enabled,
		StatsWSPort:  &port,
	}.Apply(&cfg)

	if cfg.Input.Device != device {
		t.Errorf("device = %q, want %q", cfg.Input.Device, device)
	}
	if cfg.Scaling.MaxThreshold != maxT {
		t.Errorf("max threshold = %f, want %f", cfg.Scaling.MaxThreshold, maxT)
	}
	if cfg.Sound.Enabled {
		t.Error("sound still enabled after override")
	}
	if cfg.StatsWS.Port != port {
		t.Errorf("ws port = %d, want %d", cfg.StatsWS.Port, port)
	}
	// Untouched values stay at defaults.
	if cfg.Scaling.MinThreshold != defaultMinThreshold {
		t.Errorf("min threshold = %f, want default", cfg.Scaling.MinThreshold)
	}
}

func TestToScalingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scaling = ScalingFileConfig{MinThreshold: 2, MaxThreshold: 64, LogBase: 4}

	sc := cfg.ToScalingConfig()
	if sc.MinThreshold != 2 || sc.MaxThreshold != 64 || sc.LogBase != 4 {
		t.Errorf("ToScalingConfig = %+v, want {2 64 4}", sc)
	}
}
