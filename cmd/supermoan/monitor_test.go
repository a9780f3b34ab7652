package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMonitor(player SoundPlayer) (*monitor, *runStats) {
	stats := newRunStats()
	mon := newMonitor(testScalingConfig(), stats, player, enabledFlag(true), testLogger())
	return mon, stats
}

func relEvent(code uint16, value int32) inputEvent {
	return inputEvent{Type: EV_REL, Code: code, Value: value}
}

// TestMonitor_ClassifiesAndPublishes feeds relative motion through the
// monitor and checks the classified level reaches the player.
func TestMonitor_ClassifiesAndPublishes(t *testing.T) {
	player := &fakePlayer{}
	mon, stats := newTestMonitor(player)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent, 8)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	// Fast horizontal motion: magnitude 200 is above the max threshold.
	events <- relEvent(REL_X, 200)

	waitFor(t, time.Second, func() bool {
		return len(player.played()) >= 1
	}, "no playback after a motion event")

	if got := player.played(); got[0] != 10 {
		t.Errorf("played level %d, want 10", got[0])
	}

	// Vertical motion contributes dy with dx=0.
	events <- relEvent(REL_Y, 10)
	waitFor(t, time.Second, func() bool {
		return stats.snapshot().TotalMovements == 1
	}, "mid-range movement was not counted")

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("run returned %v on clean shutdown, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout: monitor did not stop on context cancel")
	}
}

// TestMonitor_IgnoresNonMotionEvents tests that key presses, sync events
// and unrelated relative axes are not classified.
func TestMonitor_IgnoresNonMotionEvents(t *testing.T) {
	player := &fakePlayer{}
	mon, stats := newTestMonitor(player)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent, 8)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	events <- inputEvent{Type: 0x01, Code: 272, Value: 1} // EV_KEY BTN_LEFT
	events <- inputEvent{Type: 0x00, Code: 0, Value: 0}   // EV_SYN
	events <- relEvent(0x08, 1)                           // REL_WHEEL

	// Then one real motion event as a fence.
	events <- relEvent(REL_X, 10)
	waitFor(t, time.Second, func() bool {
		return stats.snapshot().TotalMovements == 1
	}, "fence motion event was not processed")

	if got := player.played(); len(got) != 1 {
		t.Errorf("player invoked %d times, want 1 (non-motion events must be ignored)", len(got))
	}

	cancel()
	<-runDone
}

// TestMonitor_ReaderErrorIsFatal tests that a device read error terminates
// the run and is returned to the caller.
func TestMonitor_ReaderErrorIsFatal(t *testing.T) {
	player := &fakePlayer{}
	mon, _ := newTestMonitor(player)

	ctx := context.Background()
	events := make(chan inputEvent)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	devErr := errors.New("device unplugged")
	readErr <- devErr

	select {
	case err := <-runDone:
		if !errors.Is(err, devErr) {
			t.Errorf("run returned %v, want the reader error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout: monitor did not stop on reader error")
	}
}

// TestMonitor_ShutdownIsIdempotent tests that stopping again after the run
// has already finished neither panics nor deadlocks.
func TestMonitor_ShutdownIsIdempotent(t *testing.T) {
	player := &fakePlayer{}
	mon, _ := newTestMonitor(player)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("timeout: monitor did not stop")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.stop()
		mon.stop()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout: repeated stop deadlocked")
	}
}

// TestMonitor_FinishesCurrentClipOnShutdown tests that cancellation does
// not interrupt an in-flight playback: the clip finishes, then the player
// loop exits.
func TestMonitor_FinishesCurrentClipOnShutdown(t *testing.T) {
	player := &fakePlayer{delay: 50 * time.Millisecond}
	mon, _ := newTestMonitor(player)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan inputEvent, 1)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	events <- relEvent(REL_X, 50)
	waitFor(t, time.Second, func() bool {
		return player.inFlight.Load() == 1
	}, "playback never started")

	cancel()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("timeout: monitor did not stop")
	}

	// run has joined the player loop, so the clip must have completed.
	if got := player.played(); len(got) != 1 {
		t.Errorf("played %v, want exactly one completed clip", got)
	}
	if player.inFlight.Load() != 0 {
		t.Error("playback still in flight after run returned")
	}
}

// TestMonitor_NotifyReceivesLevels tests the WebSocket notification hook.
func TestMonitor_NotifyReceivesLevels(t *testing.T) {
	player := &fakePlayer{}
	mon, _ := newTestMonitor(player)

	notified := make(chan int, 8)
	mon.notify = func(level int) { notified <- level }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan inputEvent, 8)
	readErr := make(chan error, 1)

	runDone := make(chan error, 1)
	go func() {
		runDone <- mon.run(ctx, events, readErr)
	}()

	events <- relEvent(REL_X, 200)

	select {
	case level := <-notified:
		if level != 10 {
			t.Errorf("notified level %d, want 10", level)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout: notify hook never called")
	}

	cancel()
	<-runDone
}
