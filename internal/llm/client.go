// Package llm talks to an OpenAI-compatible chat-completions endpoint. It is
// used for both the extraction prompt and the conversational summary rewrite.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"weather-agent/internal/common/config"
	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/httpclient"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/common/metrics"
)

const providerName = "text-generation"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a chat-style request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the text-generation contract consumed by the agent.
type Client interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// HTTPClient implements Client against a chat-completions HTTP API.
type HTTPClient struct {
	cfg     config.LLMConfig
	httpCfg httpclient.Config
	breaker *gobreaker.CircuitBreaker
	logger  logger.Logger
}

func NewHTTPClient(cfg config.LLMConfig, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		httpCfg: httpclient.Config{
			Client: &http.Client{},
			Backoff: httpclient.BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		breaker: httpclient.NewBreaker(providerName),
		logger:  log.With(map[string]interface{}{"provider": providerName}),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages and returns the single text completion.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GetTimeout())
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", commonerrors.NewExternalServiceError(providerName, err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		return req, nil
	}

	start := time.Now()
	resp, err := httpclient.Do(ctx, c.httpCfg, c.breaker, buildRequest)
	metrics.ProviderCallDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			metrics.ProviderCalls.WithLabelValues(providerName, "timeout").Inc()
			return "", commonerrors.NewUpstreamTimeoutError(providerName)
		}
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		c.logger.Error("completion request failed", map[string]interface{}{"error": err.Error()})
		return "", commonerrors.NewExternalServiceError(providerName, err)
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return "", commonerrors.NewExternalServiceError(providerName, fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		metrics.ProviderCalls.WithLabelValues(providerName, "error").Inc()
		return "", commonerrors.NewExternalServiceError(providerName, errors.New("completion contained no choices"))
	}

	metrics.ProviderCalls.WithLabelValues(providerName, "ok").Inc()
	return decoded.Choices[0].Message.Content, nil
}
