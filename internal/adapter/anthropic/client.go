// Package anthropic implements classify.Completer on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/couchcryptid/fire-incident-pipeline/internal/classify"
)

// Client sends single-turn, temperature-0 completions.
type Client struct {
	client sdk.Client
	model  string
}

// NewClient creates a client. SDK-level retries are disabled so the
// classifier's retry policy is the only retry layer. baseURL may be empty.
func NewClient(apiKey, model string, timeout time.Duration, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: sdk.NewClient(opts...), model: model}
}

// Complete returns the concatenated text blocks of the model's reply.
func (c *Client) Complete(ctx context.Context, req classify.Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 64
	}
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(0),
		System:      []sdk.TextBlockParam{{Text: req.System}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return "", classifyError(ctx, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: empty response")
	}
	return b.String(), nil
}

// classifyError wraps retryable failures with classify.ErrTransient.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if isTransientStatus(apiErr.StatusCode) {
			return fmt.Errorf("anthropic status %d: %w: %w", apiErr.StatusCode, classify.ErrTransient, err)
		}
		return fmt.Errorf("anthropic status %d: %w", apiErr.StatusCode, err)
	}
	// Transport failures and per-request timeouts.
	return fmt.Errorf("anthropic: %w: %w", classify.ErrTransient, err)
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusConflict ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
