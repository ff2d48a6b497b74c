package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.0-flash"

// GeminiRanker implements Ranker using Google's Gemini models.
type GeminiRanker struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiRanker initializes a new Gemini client.
// apiKey should be provided from environment variables.
func NewGeminiRanker(ctx context.Context, apiKey string) (*GeminiRanker, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini: missing api key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(geminiModel)
	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiRanker{client: client, model: model}, nil
}

// Close cleans up the Gemini client resources.
func (r *GeminiRanker) Close() {
	r.client.Close()
}

// PickBest asks the model to choose one candidate from the ranked list and
// returns its 1-based index. Any transport or parse failure is returned to
// the caller, which falls back to local ranking.
func (r *GeminiRanker) PickBest(ctx context.Context, req RankRequest) (int, error) {
	if len(req.Candidates) == 0 {
		return 0, fmt.Errorf("gemini: empty candidate list")
	}

	resp, err := r.model.GenerateContent(ctx, genai.Text(buildRankPrompt(req)))
	if err != nil {
		return 0, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return 0, fmt.Errorf("gemini: API returned empty candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}

	return ParseRankIndex(text.String())
}

// buildRankPrompt renders the candidate list as numbered text. The model is
// told to answer with a JSON object holding a 1-based index.
func buildRankPrompt(req RankRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You rank carpool routes for a rider.\n")
	fmt.Fprintf(&b, "Rider origin: (%.6f, %.6f). Rider destination: (%.6f, %.6f).\n",
		req.Origin.Lat, req.Origin.Lng, req.Destination.Lat, req.Destination.Lng)
	b.WriteString("Candidate routes, already sorted by combined endpoint distance:\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&b, "%d. %s: from (%.6f, %.6f) to (%.6f, %.6f), combined distance %.0f m\n",
			i+1, c.Label, c.From.Lat, c.From.Lng, c.To.Lat, c.To.Lng, c.DistanceMeters)
	}
	b.WriteString("\nPick the single best route for the rider.\n")
	b.WriteString(`Answer with a JSON object of the form {"index": N} where N is the 1-based number of your pick.`)
	return b.String()
}

// rankReply is the structured answer expected from the model.
type rankReply struct {
	Index int `json:"index"`
}

// ParseRankIndex extracts a 1-based candidate index from free-form model
// output. Accepted shapes: a JSON object with an "index" field (optionally
// wrapped in a markdown fence), or a bare integer. The index is not bounds-
// checked here; callers validate it against their candidate list.
func ParseRankIndex(raw string) (int, error) {
	cleaned := cleanJSONString(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("gemini: empty reply")
	}

	var reply rankReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err == nil {
		if reply.Index <= 0 {
			return 0, fmt.Errorf("gemini: reply index %d out of range", reply.Index)
		}
		return reply.Index, nil
	}

	// Some replies come back as a bare number despite the JSON instruction.
	if n, err := strconv.Atoi(cleaned); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("gemini: reply index %d out of range", n)
		}
		return n, nil
	}

	// Last resort: an object embedded in surrounding prose.
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			if err := json.Unmarshal([]byte(cleaned[start:end+1]), &reply); err == nil && reply.Index > 0 {
				return reply.Index, nil
			}
		}
	}

	return 0, fmt.Errorf("gemini: unparsable reply: %q", raw)
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
