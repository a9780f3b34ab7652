package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// runStats accumulates per-run movement statistics.
//
// Written by the monitor loop on every classified sample; read concurrently
// by the IPC server and the stats WebSocket broadcaster, so access is
// mutex-protected and readers take snapshots rather than holding a live
// view. The shutdown report snapshots after the monitor has stopped.
type runStats struct {
	mu sync.Mutex

	levelCounts    [maxIntensity + 1]int64 // index 1..10; 0 unused
	totalMovements int64
	lastRaw        float64
	lastScaled     float64
}

// StatsSnapshot is a point-in-time copy of the run statistics.
// It is the payload for the IPC "stats" command and WS "stats" messages.
type StatsSnapshot struct {
	LevelCounts    map[int]int64 `json:"level_counts"`
	TotalMovements int64         `json:"total_movements"`
	LastRaw        float64       `json:"last_raw_movement"`
	LastScaled     float64       `json:"last_scaled_value"`
	At             time.Time     `json:"at"`
}

func newRunStats() *runStats {
	return &runStats{}
}

// recordClamped tracks a sample that hit the clamp floor or ceiling.
// Clamped samples update the raw tracker but are excluded from the
// histogram and the movement total.
func (s *runStats) recordClamped(raw float64) {
	s.mu.Lock()
	s.lastRaw = raw
	s.mu.Unlock()
}

// recordComputed tracks a sample that went through the scaling curve.
func (s *runStats) recordComputed(raw, scaled float64, level int) {
	s.mu.Lock()
	s.lastRaw = raw
	s.lastScaled = scaled
	s.levelCounts[level]++
	s.totalMovements++
	s.mu.Unlock()
}

// snapshot returns a consistent copy of the current statistics.
func (s *runStats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int]int64, maxIntensity)
	for level := minIntensity; level <= maxIntensity; level++ {
		counts[level] = s.levelCounts[level]
	}
	return StatsSnapshot{
		LevelCounts:    counts,
		TotalMovements: s.totalMovements,
		LastRaw:        s.lastRaw,
		LastScaled:     s.lastScaled,
		At:             time.Now(),
	}
}

// writeStatsReport prints the intensity distribution histogram.
// Bars are scaled so the busiest level gets histogramWidth characters.
func writeStatsReport(w io.Writer, snap StatsSnapshot) {
	fmt.Fprintf(w, "\nIntensity Distribution Statistics:\n")
	fmt.Fprintf(w, "----------------------------------\n")
	fmt.Fprintf(w, "Total movements: %d\n\n", snap.TotalMovements)

	var maxCount int64
	for level := minIntensity; level <= maxIntensity; level++ {
		if snap.LevelCounts[level] > maxCount {
			maxCount = snap.LevelCounts[level]
		}
	}

	for level := minIntensity; level <= maxIntensity; level++ {
		count := snap.LevelCounts[level]

		percentage := 0.0
		if snap.TotalMovements > 0 {
			percentage = float64(count) / float64(snap.TotalMovements) * 100.0
		}

		barWidth := 0
		if maxCount > 0 {
			barWidth = int(float64(count) / float64(maxCount) * histogramWidth)
		}

		fmt.Fprintf(w, "Intensity %2d: %6d (%5.1f%%) %s\n",
			level, count, percentage, strings.Repeat("#", barWidth))
	}
	fmt.Fprintln(w)
}
