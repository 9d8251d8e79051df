// Package risk talks to the external risk/decision service. The service is
// opaque: it receives the rule context built from a filled-in form and
// returns a score and a level.
package risk

import (
	"context"
	"fmt"
	"strings"
)

// Level is the coarse risk band.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// ParseLevel normalizes a level string. Unknown values are an error.
func ParseLevel(raw string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(raw))); l {
	case LevelLow, LevelMedium, LevelHigh:
		return l, nil
	}
	return "", fmt.Errorf("unknown risk level %q", raw)
}

// Assessment is the scorer's answer.
type Assessment struct {
	Score     float64 `json:"score"`
	Level     Level   `json:"level"`
	Rationale string  `json:"rationale,omitempty"`
	Scorer    string  `json:"scorer"`
}

// Scorer assesses a rule context.
type Scorer interface {
	Assess(ctx context.Context, ruleContext map[string]any) (Assessment, error)
}

// Static scores from the activityRiskLevel key alone. It is used when no
// remote scorer is configured.
type Static struct{}

// Assess maps activityRiskLevel to a fixed score. A missing or unknown level
// is treated as MEDIUM.
func (Static) Assess(_ context.Context, ruleContext map[string]any) (Assessment, error) {
	level := LevelMedium
	if raw, ok := ruleContext["activityRiskLevel"]; ok {
		if parsed, err := ParseLevel(fmt.Sprint(raw)); err == nil {
			level = parsed
		}
	}
	score := map[Level]float64{LevelLow: 20, LevelMedium: 50, LevelHigh: 85}[level]
	return Assessment{
		Score:     score,
		Level:     level,
		Rationale: "derived from activityRiskLevel",
		Scorer:    "static",
	}, nil
}
