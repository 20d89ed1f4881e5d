package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/cesargomez89/songpipe/internal/constants"
)

// Gemini translates with a Google Gemini model in JSON mode.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = constants.DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(constants.GeminiRPS), 1),
	}, nil
}

func (g *Gemini) Name() string {
	return constants.SourceGemini
}

func (g *Gemini) TranslateLines(ctx context.Context, lines []string, target, source string) ([]string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = constants.MimeTypeJSON

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(lines, target, source)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	return parseLines(cleanJSONBlock(text), len(lines))
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func buildPrompt(lines []string, target, source string) string {
	numbered, _ := json.Marshal(lines)
	from := "the source language"
	if source != "" {
		from = fmt.Sprintf("%q", source)
	}
	return fmt.Sprintf(`Translate these song lyrics from %s into the language with code %q.
The input is a JSON array of %d lines. Translate each line on its own, keeping
its meaning and tone. Do not merge, split, reorder or drop lines. Keep empty
lines empty.

Respond with a JSON object {"lines": [...]} whose array has exactly %d strings.

Input:
%s`, from, target, len(lines), len(lines), numbered)
}

func linesSchema(n int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "required": ["lines"],
  "properties": {
    "lines": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": %d,
      "maxItems": %d
    }
  }
}`, n, n)
}

// parseLines validates the model output against the expected shape and
// returns its lines.
func parseLines(text string, n int) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(linesSchema(n)),
		gojsonschema.NewStringLoader(text),
	)
	if err != nil {
		return nil, fmt.Errorf("translation: unparseable response: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		if len(msgs) > 0 && strings.Contains(strings.Join(msgs, " "), "items") {
			return nil, fmt.Errorf("%w: %s", ErrLineCountMismatch, strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("translation: invalid response: %s", strings.Join(msgs, "; "))
	}

	var out struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("translation: decode response: %w", err)
	}
	return out.Lines, nil
}

func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
