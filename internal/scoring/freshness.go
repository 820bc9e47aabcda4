package scoring

import (
	"math"
	"time"
)

// Decay parameterizes freshness: full score inside the grace period, then
// logarithmic decay against Base, never below Floor.
type Decay struct {
	GraceDays float64 `yaml:"grace_days" mapstructure:"grace_days" json:"grace_days"`
	BaseDays  float64 `yaml:"base_days" mapstructure:"base_days" json:"base_days"`
	Floor     float64 `yaml:"floor" mapstructure:"floor" json:"floor"`
}

// DefaultDecay returns grace 180 days, base 365 days, floor 0.1.
func DefaultDecay() Decay {
	return Decay{GraceDays: 180, BaseDays: 365, Floor: 0.1}
}

// Freshness scores a claim of the given age in days.
//
//	age <= grace:  1.0
//	age >  grace:  1 / (1 + ln(1 + age/base)), clamped to [floor, 1]
//	expired:       floor
func (d Decay) Freshness(ageDays float64, expired bool) float64 {
	if expired {
		return d.Floor
	}
	if ageDays < 0 || math.IsNaN(ageDays) {
		ageDays = 0
	}
	if ageDays <= d.GraceDays {
		return 1.0
	}

	base := d.BaseDays
	if base <= 0 {
		base = 365
	}
	score := 1.0 / (1.0 + math.Log1p(ageDays/base))
	return clamp(score, d.Floor, 1.0)
}

// Freshness applies DefaultDecay.
func Freshness(ageDays float64, expired bool) float64 {
	return DefaultDecay().Freshness(ageDays, expired)
}

// AgeDays returns the whole days elapsed from ts to now. Timestamps in the
// future count as age 0.
func AgeDays(ts, now time.Time) float64 {
	d := now.Sub(ts)
	if d < 0 {
		return 0
	}
	return math.Floor(d.Hours() / 24)
}

// FreshnessLabel buckets a freshness score for display.
func FreshnessLabel(score float64) string {
	switch {
	case score >= 0.95:
		return "Very Fresh"
	case score >= 0.8:
		return "Fresh"
	case score >= 0.5:
		return "Recent"
	case score >= 0.3:
		return "Aging"
	default:
		return "Stale"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
