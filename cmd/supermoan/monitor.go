package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// monitor owns the event-to-sound pipeline: it consumes decoded input
// events, classifies relative motion into intensity levels and publishes
// them to the playback slot. It also owns the lifecycle of the player loop.
//
// Concurrency: the monitor loop and the player loop are the only two
// goroutines touching the slot. Statistics are written on the monitor side
// only; concurrent readers (IPC, WebSocket) take snapshots.
type monitor struct {
	mapper       *intensityMapper
	slot         *playbackSlot
	stats        *runStats
	player       SoundPlayer
	soundEnabled *atomic.Bool
	logger       *slog.Logger

	// notify, when set, receives each classified level. Used by the stats
	// WebSocket broadcaster; never blocks the event path.
	notify func(level int)

	playerDone chan struct{}
	stopOnce   sync.Once
}

func newMonitor(cfg ScalingConfig, stats *runStats, player SoundPlayer, soundEnabled *atomic.Bool, logger *slog.Logger) *monitor {
	return &monitor{
		mapper:       newIntensityMapper(cfg, stats),
		slot:         newPlaybackSlot(),
		stats:        stats,
		player:       player,
		soundEnabled: soundEnabled,
		logger:       logger,
		playerDone:   make(chan struct{}),
	}
}

// run processes events until ctx is canceled or the reader reports an
// error. The player loop is started before the first event is consumed so
// no published level can be missed.
//
// Returns nil on clean shutdown and the reader's error when the device
// became unreadable; either way the player loop has been joined and the
// slot is closed by the time run returns.
func (m *monitor) run(ctx context.Context, events <-chan inputEvent, readErr <-chan error) error {
	go func() {
		defer close(m.playerDone)
		runPlayerLoop(m.slot, m.player, m.soundEnabled, m.logger)
	}()
	defer m.stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping (context canceled)")
			return nil

		case err := <-readErr:
			// The device disappearing is fatal for this run, not retried.
			m.logger.Error("input reader stopped", "error", err)
			return err

		case ev, ok := <-events:
			if !ok {
				m.logger.Info("monitor stopping (events channel closed)")
				return nil
			}
			m.handleEvent(ev)
		}
	}
}

// handleEvent classifies one raw input event. Only relative X/Y motion is
// of interest; every other event type is ignored.
func (m *monitor) handleEvent(ev inputEvent) {
	if ev.Type != EV_REL {
		return
	}

	var dx, dy int32
	switch ev.Code {
	case REL_X:
		dx = ev.Value
	case REL_Y:
		dy = ev.Value
	default:
		return
	}

	level := m.mapper.classify(dx, dy)
	m.slot.publish(level)

	if m.notify != nil {
		m.notify(level)
	}
}

// stop shuts down the player loop: close the slot (wakes the consumer even
// when idle), then wait for it to finish its current clip and exit.
// Idempotent; safe to call after the loop already stopped on its own.
func (m *monitor) stop() {
	m.stopOnce.Do(func() {
		m.slot.close()
		<-m.playerDone
	})
}
