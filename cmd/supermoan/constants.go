package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_REL = 0x02

	REL_X = 0x00
	REL_Y = 0x01
)

// Intensity scale
const (
	minIntensity = 1
	maxIntensity = 10
)

// Scaling defaults (log-scaled movement magnitude -> intensity level)
const (
	defaultMinThreshold = 1.0   // Movements below this magnitude clamp to level 1
	defaultMaxThreshold = 100.0 // Movements above this magnitude clamp to level 10
	defaultLogBase      = 2.0   // Logarithm base for the scaling curve
)

// Sound playback defaults
const (
	defaultSoundDir = "moans"

	backendAplay = "aplay"
	backendBeep  = "beep"
)

// Device discovery
const (
	devInputPath = "/dev/input"
	eventPrefix  = "event"
)

// Histogram report
const histogramWidth = 50 // Max '#' bar width for the busiest level
