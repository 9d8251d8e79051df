package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.5-flash"

const systemPrompt = `You are a compliance risk analyst for a customer-onboarding back office.
You receive a flat JSON "rule context" describing an application (location type, emirate, activity risk level, nationality and other keys).

RULES:
1. Score the onboarding risk from 0 (no risk) to 100 (unacceptable).
2. Choose a level: LOW (score < 35), MEDIUM (35 to 70) or HIGH (> 70).
3. Respond ONLY with a single, minified JSON object. No markdown ticks or other text.
4. The JSON format MUST be: {"score": 42, "level": "MEDIUM", "rationale": "one sentence"}
`

// GeminiScorer asks a Gemini model to score a rule context.
type GeminiScorer struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    zerolog.Logger
}

// NewGeminiScorer creates the client. An empty API key returns a nil scorer
// and no error so callers can fall back to Static.
func NewGeminiScorer(ctx context.Context, apiKey string, log zerolog.Logger) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := client.GenerativeModel(geminiModel)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.SetTemperature(0)
	return &GeminiScorer{
		client: client,
		model:  model,
		log:    log.With().Str("component", "risk").Logger(),
	}, nil
}

// Close releases the client.
func (g *GeminiScorer) Close() {
	if g == nil || g.client == nil {
		return
	}
	if err := g.client.Close(); err != nil {
		g.log.Warn().Err(err).Msg("failed to close Gemini client")
	}
}

// Assess sends the rule context and parses the JSON answer.
func (g *GeminiScorer) Assess(ctx context.Context, ruleContext map[string]any) (Assessment, error) {
	if g == nil || g.model == nil {
		return Assessment{}, fmt.Errorf("risk scorer is not initialized")
	}
	payload, err := json.Marshal(ruleContext)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to encode rule context: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text("Rule context: "+string(payload)))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Assessment{}, fmt.Errorf("no response from risk model")
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return Assessment{}, fmt.Errorf("unexpected response type from risk model: %T", part)
	}
	g.log.Debug().Str("raw", string(text)).Msg("risk model response")

	a, err := parseAssessment(string(text))
	if err != nil {
		return Assessment{}, err
	}
	a.Scorer = "gemini"
	return a, nil
}

// parseAssessment tolerates markdown fences around the JSON object and
// derives the level from the score when the model omits it.
func parseAssessment(raw string) (Assessment, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var body struct {
		Score     *float64 `json:"score"`
		Level     string   `json:"level"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return Assessment{}, fmt.Errorf("failed to parse risk response: %w (response was: %s)", err, raw)
	}
	if body.Score == nil {
		return Assessment{}, fmt.Errorf("risk response has no score: %s", raw)
	}
	score := *body.Score
	if score < 0 || score > 100 {
		return Assessment{}, fmt.Errorf("risk score %v out of range [0,100]", score)
	}

	level, err := ParseLevel(body.Level)
	if err != nil {
		switch {
		case score > 70:
			level = LevelHigh
		case score >= 35:
			level = LevelMedium
		default:
			level = LevelLow
		}
	}
	return Assessment{Score: score, Level: level, Rationale: body.Rationale}, nil
}
