// Package completion sends rendered prompts to an OpenAI-compatible chat
// backend.
package completion

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/config"
	"github.com/hpungsan/varloom/internal/errors"
)

const systemPrompt = "You are a roleplay assistant. Follow the tag " +
	"instructions at the end of the prompt exactly; emit every requested " +
	"tag block in your reply."

// Client wraps the OpenAI chat-completions API. It satisfies the Completer
// contract used by suite execution.
type Client struct {
	api   *openai.Client
	model string
}

// New builds a client from config. The API key is read from the configured
// environment variable, never from the config file itself.
func New(cfg config.CompletionConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.NewInvalidRequest("completion.model not configured")
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, errors.NewInvalidRequest("completion API key not set ($" + cfg.APIKeyEnv + ")")
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	api := openai.NewClient(opts...)

	return &Client{api: &api, model: cfg.Model}, nil
}

// Complete sends one prompt and returns the full reply text. Transient
// failures are retried with a fixed backoff schedule; rate limits wait
// longer than server errors.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const maxAttempts = 3
	rateLimitWait := []time.Duration{65 * time.Second, 100 * time.Second}
	serverErrorWait := []time.Duration{5 * time.Second, 30 * time.Second}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			var wait time.Duration
			switch {
			case attempt >= maxAttempts-1:
			case isRateLimitError(err):
				wait = rateLimitWait[attempt]
			case isServerError(err):
				wait = serverErrorWait[attempt]
			}
			if wait == 0 {
				break
			}
			log.Warn().Err(err).Dur("wait", wait).Msg("completion: retrying after transient failure")
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if len(resp.Choices) == 0 {
			return "", errors.NewInternal(fmt.Errorf("completion returned no choices"))
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", errors.NewInternal(fmt.Errorf("completion failed after %d attempts: %w", maxAttempts, lastErr))
}

func isRateLimitError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests")
}

func isServerError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "500") ||
		strings.Contains(s, "internal server error") ||
		strings.Contains(s, "server_error")
}
