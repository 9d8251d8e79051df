package risk

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		score float64
		level Level
	}{
		{"plain", `{"score":42,"level":"MEDIUM","rationale":"mainland trading"}`, 42, LevelMedium},
		{"fenced", "```json\n{\"score\": 80, \"level\": \"high\"}\n```", 80, LevelHigh},
		{"level derived from score", `{"score":10}`, 10, LevelLow},
		{"unknown level derived", `{"score":71,"level":"SEVERE"}`, 71, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAssessment(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.level, a.Level)
		})
	}
}

func TestParseAssessment_Errors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"level":"LOW"}`,
		`{"score":140,"level":"HIGH"}`,
	} {
		_, err := parseAssessment(raw)
		assert.Error(t, err, raw)
	}
}

func TestStatic(t *testing.T) {
	a, err := Static{}.Assess(context.Background(), map[string]any{"activityRiskLevel": "high"})
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, a.Level)
	assert.Equal(t, 85.0, a.Score)
	assert.Equal(t, "static", a.Scorer)

	a, err = Static{}.Assess(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, a.Level)
}

func TestNewGeminiScorer_NoKey(t *testing.T) {
	s, err := NewGeminiScorer(context.Background(), "", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = s.Assess(context.Background(), nil)
	assert.Error(t, err)
	s.Close()
}
