package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/pinechat-backend/internal/config"
	"github.com/yungbote/pinechat-backend/internal/logger"
)

const tradingSystemPrompt = `You are an expert trading strategy consultant who helps users design and implement trading strategies.

CONTEXT HANDLING:
- If a previous conversation summary is provided, use it to understand the conversation context
- Build upon previous discussions and maintain continuity
- Always generate a new updated summary for the conversation

When you receive a question about trading strategies:
1. First, provide a comprehensive explanation of the strategy concept, including:
   - Market conditions where it works best
   - Key indicators or patterns involved
   - Risk management considerations
   - Entry and exit rules
   - Potential advantages and limitations

2. If the user needs PineScript code, write it yourself using Pine Script v5 syntax:
   - Include a proper strategy() or indicator() declaration
   - Add clear comments explaining the logic
   - Include risk management parameters when applicable

3. Structure your response to include:
   - Strategic explanation and market analysis
   - PineScript implementation (if requested or relevant)
   - Practical usage tips and parameter adjustments
   - Risk warnings and best practices

IMPORTANT: You must ALWAYS return your response as valid JSON. Use this structure:
- answer: Your comprehensive answer including strategy explanation and any generated PineScript code
- code: The PineScript code if generated, otherwise null
- chatsummary: A concise summary of this conversation including what was discussed and what the user requested

Guidelines:
- Be educational and explain the "why" behind strategies
- When generating PineScript, ensure it is practical and well-commented
- Always include risk management considerations
- If no PineScript is needed, set code to null
- Keep chatsummary concise but informative about the conversation flow

Never include any text before or after the JSON. The response must be valid JSON only.`

// modelPricing maps model name to USD per 1M prompt/completion tokens.
// Unknown models report zero cost rather than guessing.
var modelPricing = map[string]struct{ Prompt, Completion float64 }{
	"gpt-4o":      {Prompt: 2.50, Completion: 10.00},
	"gpt-4o-mini": {Prompt: 0.15, Completion: 0.60},
	"gpt-4.1":     {Prompt: 2.00, Completion: 8.00},
}

type pinescriptAgent struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewPineScriptAgent builds the production TradingAgent over the OpenAI
// chat completions API.
func NewPineScriptAgent(cfg *config.Config, log *logger.Logger) (TradingAgent, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	return &pinescriptAgent{
		log:        log.With("service", "PineScriptAgent"),
		baseURL:    cfg.OpenAI.BaseURL,
		apiKey:     cfg.OpenAI.APIKey,
		model:      cfg.OpenAI.Model,
		httpClient: &http.Client{Timeout: time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second},
		maxRetries: cfg.OpenAI.MaxRetries,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	if code >= 500 && code <= 599 {
		return true
	}
	return false
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}
	var httpErr *openAIHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

type chatCompletionsRequest struct {
	Model          string               `json:"model"`
	Messages       []chatRequestMessage `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat *chatResponseFormat  `json:"response_format,omitempty"`
}

type chatRequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *pinescriptAgent) Run(ctx context.Context, input, previousSummary string) (*AgentResult, error) {
	if previousSummary == "" {
		previousSummary = DefaultPreviousSummary
	}
	req := chatCompletionsRequest{
		Model: a.model,
		Messages: []chatRequestMessage{
			{Role: "system", Content: tradingSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Previous conversation summary: %s\n\nCurrent query: %s", previousSummary, input)},
		},
		Temperature:    0,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	var resp chatCompletionsResponse
	if err := a.do(ctx, "POST", "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	pricing := modelPricing[a.model]
	cost := float64(resp.Usage.PromptTokens)*pricing.Prompt/1e6 +
		float64(resp.Usage.CompletionTokens)*pricing.Completion/1e6

	a.log.Debug("Agent call completed",
		"model", a.model,
		"total_tokens", resp.Usage.TotalTokens,
		"cost", cost,
	)
	return &AgentResult{
		Raw:              resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Cost:             cost,
	}, nil
}

func (a *pinescriptAgent) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (a *pinescriptAgent) do(ctx context.Context, method, path string, body any, out any) error {
	// exponential backoff: 1s, 2s, 4s, 8s (cap ~10s)
	backoff := 1 * time.Second

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := a.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !isRetryableErr(err) {
			return err
		}
		if attempt == a.maxRetries {
			return err
		}

		// Respect Retry-After when present
		sleepFor := backoff
		if resp != nil {
			ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
			if ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		a.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", a.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}
