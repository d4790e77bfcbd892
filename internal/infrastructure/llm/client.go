// Package llm talks to the external chat-completion service used for risk
// escalation. The response must match the strict schema; any deviation is
// reported as unavailable so the rule verdict stands.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pipelineerrors "github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/errors"
)

const systemPrompt = "You are an expert at evaluating used car listings in Bulgaria. " +
	"Analyze the listing and identify potential risks or red flags. " +
	"Respond with strict JSON only."

// Client implements deps.RiskLLM over an OpenAI-compatible endpoint
type Client struct {
	cfg    *config.LLMConfig
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates the LLM client
func NewClient(cfg *config.LLMConfig, logger zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Evaluate asks the model for a risk verdict
func (c *Client) Evaluate(ctx context.Context, req *dto.RiskRequest) (*dto.RiskResponse, error) {
	if c.cfg.Endpoint == "" {
		return nil, pipelineerrors.ErrLLMUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    0.3,
		MaxTokens:      500,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Msg("LLM request failed")
		return nil, pipelineerrors.ErrLLMUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("LLM returned non-200")
		return nil, pipelineerrors.ErrLLMUnavailable
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil || len(chat.Choices) == 0 {
		return nil, pipelineerrors.ErrLLMUnavailable
	}

	var out dto.RiskResponse
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &out); err != nil {
		return nil, pipelineerrors.ErrLLMUnavailable
	}

	out.RiskLevel = strings.ToLower(strings.TrimSpace(out.RiskLevel))
	if !validLevel(out.RiskLevel) || out.Confidence < 0 || out.Confidence > 1 {
		return nil, pipelineerrors.ErrLLMUnavailable
	}

	return &out, nil
}

func validLevel(level string) bool {
	switch level {
	case "green", "yellow", "red":
		return true
	}
	return false
}

func buildPrompt(req *dto.RiskRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this Bulgarian used car listing (prompt %s):\n\n", req.PromptVersion)
	fmt.Fprintf(&b, "**Title:** %s\n\n**Description:**\n%s\n\n", req.Title, req.Description)
	if len(req.Features) > 0 {
		fmt.Fprintf(&b, "**Features:** %s\n\n", strings.Join(req.Features, ", "))
	}
	b.WriteString(`Provide your assessment as JSON:

{
  "risk_level": "green|yellow|red",
  "confidence": 0.0-1.0,
  "reasons": ["reason 1", "reason 2"],
  "summary": "2-3 sentence summary in Bulgarian",
  "buyer_notes": "Important notes for potential buyers"
}

Consider:
1. Signs of accident damage or salvage title
2. Mileage authenticity concerns
3. Import history red flags
4. Urgency or pressure tactics
5. Overly positive language (too good to be true)

Focus on Bulgarian-specific patterns and scams.`)
	return b.String()
}
