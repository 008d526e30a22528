// Package trust derives the trust score, tier, and forecast from incidents.
// Everything here is a pure function of its input; nothing is cached.
package trust

import (
	"math"

	"github.com/ppiankov/trustplane/internal/model"
)

// Score boundaries.
const (
	BaseScore         = 100
	MinScore          = 0
	HealthyThreshold  = 85 // score >= 85 is Healthy
	CriticalThreshold = 60 // score < 60 is Critical
)

// State is the derived view of a set of incidents.
type State struct {
	Score       int              `json:"score"`
	Tier        model.TrustState `json:"tier"`
	Forecast    model.Forecast   `json:"forecast"`
	Penalty     int              `json:"penalty"`
	ActiveCount int              `json:"active_count"`
}

// Evaluate computes the trust state. Order of incidents does not matter and
// resolved incidents contribute nothing.
func Evaluate(incidents []model.Incident) State {
	penalty, active := 0, 0
	for _, inc := range incidents {
		if !inc.IsActive() {
			continue
		}
		active++
		penalty = saturatingAdd(penalty, inc.Penalty())
	}

	score := Clamp(BaseScore - penalty)
	forecast := model.Stable
	if active > 0 {
		forecast = model.Degrading
	}

	return State{
		Score:       score,
		Tier:        TierFor(score),
		Forecast:    forecast,
		Penalty:     penalty,
		ActiveCount: active,
	}
}

// saturatingAdd sums non-negative penalties, pinning at math.MaxInt instead
// of wrapping.
func saturatingAdd(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// Clamp bounds a raw score to [0, 100].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > BaseScore {
		return BaseScore
	}
	return score
}

// TierFor maps a score to its tier, checking thresholds high to low.
func TierFor(score int) model.TrustState {
	switch {
	case score >= HealthyThreshold:
		return model.Healthy
	case score >= CriticalThreshold:
		return model.Degraded
	default:
		return model.Critical
	}
}

// Initial is the state of an empty incident set.
func Initial() State {
	return Evaluate(nil)
}
