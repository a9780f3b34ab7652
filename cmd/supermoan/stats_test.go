package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestRunStats_SnapshotIsACopy tests that mutating the source after a
// snapshot does not change the snapshot.
func TestRunStats_SnapshotIsACopy(t *testing.T) {
	stats := newRunStats()
	stats.recordComputed(10, 3.32, 6)

	snap := stats.snapshot()
	stats.recordComputed(20, 4.32, 7)

	if snap.TotalMovements != 1 {
		t.Errorf("snapshot total = %d, want 1", snap.TotalMovements)
	}
	if snap.LevelCounts[7] != 0 {
		t.Errorf("snapshot level 7 count = %d, want 0", snap.LevelCounts[7])
	}
}

// TestWriteStatsReport_Histogram checks the shape of the shutdown report.
func TestWriteStatsReport_Histogram(t *testing.T) {
	stats := newRunStats()
	// Level 6 is the busiest; level 3 has half its count.
	for i := 0; i < 4; i++ {
		stats.recordComputed(10, 3.32, 6)
	}
	for i := 0; i < 2; i++ {
		stats.recordComputed(3, 1.58, 3)
	}

	var buf bytes.Buffer
	writeStatsReport(&buf, stats.snapshot())
	out := buf.String()

	if !strings.Contains(out, "Total movements: 6") {
		t.Errorf("report missing total movements:\n%s", out)
	}

	// The busiest level gets the full bar width, the half-count level half.
	fullBar := strings.Repeat("#", histogramWidth)
	halfBar := strings.Repeat("#", histogramWidth/2)
	if !strings.Contains(out, fullBar) {
		t.Errorf("report missing full-width bar for busiest level:\n%s", out)
	}
	if !strings.Contains(out, halfBar) {
		t.Errorf("report missing half-width bar:\n%s", out)
	}
	if strings.Count(out, "Intensity") != maxIntensity {
		t.Errorf("report lists %d levels, want %d:\n%s", strings.Count(out, "Intensity"), maxIntensity, out)
	}
}

// TestWriteStatsReport_Empty tests the zero-sample report does not divide
// by zero and shows 0%% rows.
func TestWriteStatsReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	writeStatsReport(&buf, newRunStats().snapshot())
	out := buf.String()

	if !strings.Contains(out, "Total movements: 0") {
		t.Errorf("empty report wrong:\n%s", out)
	}
	if strings.Contains(out, "#") {
		t.Errorf("empty report should have no histogram bars:\n%s", out)
	}
}
