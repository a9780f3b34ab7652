package main

import "math"

// ScalingConfig holds the validated parameters of the movement-to-intensity
// curve. Immutable for the lifetime of the process; Config.Validate has
// already rejected min <= 0, max <= min and base <= 1 before this is built.
type ScalingConfig struct {
	MinThreshold float64
	MaxThreshold float64
	LogBase      float64
}

// intensityMapper converts relative pointer motion into a discrete intensity
// level from 1 to 10. Movement magnitude is scaled logarithmically between
// the two thresholds; magnitudes outside the thresholds clamp to the ends of
// the scale.
//
// The mapper records statistics into stats as a side effect. Clamped samples
// (below min, above max) update only the raw-magnitude tracker: the
// per-level histogram counts computed mid-range samples only. That
// asymmetry is deliberate - the histogram describes the shape of the scaled
// distribution, not the clamp floors.
type intensityMapper struct {
	cfg   ScalingConfig
	stats *runStats

	// Precomputed: log(maxThreshold) / log(logBase). Zero only when
	// maxThreshold == 1, which the classify path guards against.
	maxScaled float64
}

func newIntensityMapper(cfg ScalingConfig, stats *runStats) *intensityMapper {
	return &intensityMapper{
		cfg:       cfg,
		stats:     stats,
		maxScaled: math.Log(cfg.MaxThreshold) / math.Log(cfg.LogBase),
	}
}

// classify maps a motion sample to an intensity level in [1, 10].
// It never fails: any (dx, dy) pair, including (0, 0), yields a valid level.
func (m *intensityMapper) classify(dx, dy int32) int {
	movement := math.Sqrt(float64(dx)*float64(dx) + float64(dy)*float64(dy))

	if movement < m.cfg.MinThreshold {
		m.stats.recordClamped(movement)
		return minIntensity
	}
	if movement > m.cfg.MaxThreshold {
		m.stats.recordClamped(movement)
		return maxIntensity
	}

	// maxThreshold == 1 makes the denominator zero. Validation only
	// requires max > min > 0, so guard it: any in-range magnitude is <= 1
	// here, and the top of the scale is the least surprising answer.
	if m.maxScaled == 0 {
		m.stats.recordClamped(movement)
		return maxIntensity
	}

	scaled := math.Log(movement) / math.Log(m.cfg.LogBase)
	raw := 1.0 + (scaled/m.maxScaled)*float64(maxIntensity-1)

	// Round half away from zero; raw is always positive here.
	intensity := int(raw + 0.5)
	if intensity < minIntensity {
		intensity = minIntensity
	} else if intensity > maxIntensity {
		intensity = maxIntensity
	}

	m.stats.recordComputed(movement, scaled, intensity)

	return intensity
}
