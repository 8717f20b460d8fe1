package recommend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/config"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/protocol"
)

const defaultRecommendTimeout = 60 * time.Second

// LLMRecommender asks an OpenAI-compatible chat completions endpoint
// (DeepSeek in production) to pick dishes from the configured menu.
type LLMRecommender struct {
	baseURL  string
	apiKey   string
	model    string
	maxItems int
	menu     []config.Dish
	client   *http.Client
}

func NewLLMRecommender(cfg config.RecommendConfig, menu []config.Dish) *LLMRecommender {
	return &LLMRecommender{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		maxItems: cfg.MaxItems,
		menu:     menu,
		client:   &http.Client{Timeout: defaultRecommendTimeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type llmResult struct {
	Recommendations []protocol.Recommendation `json:"recommendations"`
	TotalCount      int                       `json:"total_count"`
}

func (r *LLMRecommender) Recommend(ctx context.Context, request string) ([]protocol.Recommendation, error) {
	if r.apiKey == "" {
		return nil, errors.New("missing recommendation API key")
	}
	if request == "" {
		return nil, errors.New("empty request text")
	}

	payload := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a data extraction engine for a restaurant menu assistant. Output strict JSON only."},
			{Role: "user", Content: buildPrompt(request, r.menu, r.maxItems)},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := r.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recommendation request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommendation service returned %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, ErrNoRecommendations
	}

	items, err := ParseResult(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if r.maxItems > 0 && len(items) > r.maxItems {
		items = items[:r.maxItems]
	}
	return items, nil
}

// ParseResult extracts the recommendation list from raw model output.
// Models wrap JSON in markdown fences often enough that the extraction
// tolerates leading/trailing noise around the outermost object.
func ParseResult(output string) ([]protocol.Recommendation, error) {
	start := strings.IndexByte(output, '{')
	end := strings.LastIndexByte(output, '}')
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model output")
	}

	var result llmResult
	if err := json.Unmarshal([]byte(output[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("invalid model JSON: %w", err)
	}
	if len(result.Recommendations) == 0 {
		return nil, ErrNoRecommendations
	}
	return result.Recommendations, nil
}

func buildPrompt(request string, menu []config.Dish, max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommend up to %d dishes from the menu below for this customer request.\n\n", max)
	fmt.Fprintf(&b, "Customer request: %s\n\nMenu:\n", request)
	for _, d := range menu {
		fmt.Fprintf(&b, "- id=%s name=%s price=%.2f", d.ID, d.Name, d.Price)
		if d.Description != "" {
			fmt.Fprintf(&b, " description=%s", d.Description)
		}
		if len(d.Tags) > 0 {
			fmt.Fprintf(&b, " tags=%s", strings.Join(d.Tags, ","))
		}
		b.WriteByte('\n')
	}
	b.WriteString(`
Output MUST be a single JSON object, nothing else:
{
  "recommendations": [
    {"id": "string", "name": "string", "reason": "string"}
  ],
  "total_count": number
}
Only recommend dishes that appear on the menu. The reason field explains
why the dish matches the request, in the customer's language.`)
	return b.String()
}
