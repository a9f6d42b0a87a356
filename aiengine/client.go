package aiengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

// Client calls an OpenAI-compatible chat-completions endpoint for a
// market opinion. Every failure path falls back to the local rule-based
// analysis: AnalyzeMarket never returns an error to the caller.
type Client struct {
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	client    *http.Client
}

// NewClient creates a client from the AI configuration. An empty API
// key is allowed; the client then always answers from the fallback.
func NewClient(cfg config.AIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

// AnalyzeMarket asks the model for a trading opinion on the snapshot.
// Network errors, malformed replies and missing required fields all
// resolve to the rule-based fallback opinion.
func (c *Client) AnalyzeMarket(ctx context.Context, snap types.MarketSnapshot) types.SignalOpinion {
	if c.apiKey == "" {
		logger.Debug("AI API key not configured, using fallback analysis", zap.String("symbol", snap.Symbol))
		return FallbackOpinion(snap)
	}

	content, err := c.complete(ctx, c.buildPrompt(snap))
	if err != nil {
		logger.Warn("AI request failed, using fallback analysis",
			zap.String("symbol", snap.Symbol), zap.Error(err))
		return FallbackOpinion(snap)
	}

	opinion, err := parseOpinion(content)
	if err != nil {
		logger.Warn("AI reply rejected, using fallback analysis",
			zap.String("symbol", snap.Symbol), zap.Error(err))
		return FallbackOpinion(snap)
	}

	opinion.Symbol = snap.Symbol
	opinion.Timestamp = time.Now()
	logger.Info("AI analysis completed",
		zap.String("symbol", snap.Symbol),
		zap.String("action", opinion.Action),
		zap.Float64("confidence", opinion.Confidence))
	return opinion
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one chat-completion request and returns the raw reply
// content.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: 0.1, // low temperature for consistent analysis
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error response from API: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in API response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (c *Client) buildPrompt(snap types.MarketSnapshot) string {
	ind := snap.Indicators
	var b strings.Builder
	b.WriteString("You are an experienced Bitcoin trading analyst. Analyze the market data below and decide on a trade.\n\n")
	b.WriteString("MARKET DATA:\n")
	fmt.Fprintf(&b, "- Current price: $%.2f\n", snap.Price)
	fmt.Fprintf(&b, "- 24h volume: %.0f\n", snap.Ticker.Volume24h)
	fmt.Fprintf(&b, "- RSI: %.2f\n", ind.RSI)
	fmt.Fprintf(&b, "- MACD: %.2f signal: %.2f histogram: %.2f\n", ind.MACD.MACD, ind.MACD.Signal, ind.MACD.Histogram)
	fmt.Fprintf(&b, "- Support levels: %v\n", ind.SupportLevels)
	fmt.Fprintf(&b, "- Resistance levels: %v\n", ind.ResistanceLevels)
	b.WriteString("\nRespond with JSON only, no other text:\n")
	b.WriteString(`{
    "action": "BUY/SELL/HOLD",
    "confidence": 0.85,
    "entry_price": 45000,
    "stop_loss": 44100,
    "take_profit": 46800,
    "risk_level": "LOW/MEDIUM/HIGH",
    "reasoning": "detailed reasoning for the decision",
    "key_factors": ["factor1", "factor2"],
    "market_sentiment": "BULLISH/BEARISH/NEUTRAL"
}`)
	return b.String()
}
