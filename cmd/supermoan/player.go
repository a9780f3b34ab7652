package main

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"
)

// SoundPlayer plays the clip for one intensity level, blocking for the
// duration of the clip. A failed playback (missing file, engine gone) is an
// error, never a panic; the player loop logs it and keeps going.
type SoundPlayer interface {
	Play(level int) error
}

// runPlayerLoop is the slot consumer. It claims pending levels and plays
// them one at a time until the slot is closed.
//
// The sound toggle is consulted after the claim so a disabled run still
// drains the slot; otherwise stale levels would fire the moment sound is
// re-enabled.
func runPlayerLoop(slot *playbackSlot, player SoundPlayer, soundEnabled *atomic.Bool, logger *slog.Logger) {
	for {
		level, ok := slot.take()
		if !ok {
			logger.Debug("player loop stopping (slot closed)")
			return
		}

		if soundEnabled.Load() {
			if err := player.Play(level); err != nil {
				// Recoverable: one failed clip must not stop monitoring.
				logger.Warn("playback failed", "level", level, "error", err)
			}
		} else {
			logger.Debug("sound disabled, skipping playback", "level", level)
		}

		slot.donePlaying()
	}
}

// aplayPlayer shells out to aplay for each clip. This is the default
// backend: it needs no audio stack in-process and works on any ALSA system.
type aplayPlayer struct {
	dir    string
	logger *slog.Logger
}

func newAplayPlayer(dir string, logger *slog.Logger) *aplayPlayer {
	return &aplayPlayer{dir: dir, logger: logger}
}

func (p *aplayPlayer) Play(level int) error {
	path := soundFilePath(p.dir, level)
	p.logger.Debug("playing clip", "backend", backendAplay, "path", path)

	cmd := exec.Command("aplay", path)
	// aplay chatters on stderr even on success; discard it.
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("aplay %s: %w", path, err)
	}
	return nil
}

// nullPlayer is the -no-sound backend: playback requests are accepted and
// dropped. Statistics and slot behavior are unaffected, which makes it
// useful for testing the monitoring path on machines without audio.
type nullPlayer struct {
	logger *slog.Logger
}

func newNullPlayer(logger *slog.Logger) *nullPlayer {
	return &nullPlayer{logger: logger}
}

func (p *nullPlayer) Play(level int) error {
	p.logger.Debug("sound disabled, would have played", "level", level)
	return nil
}
