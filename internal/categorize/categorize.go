// Package categorize assigns generic category labels to products so that
// equivalent items from different stores can be compared.
package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Categorizer produces a generic category label for a product title.
type Categorizer interface {
	Categorize(ctx context.Context, title string) (string, error)
}

const (
	anthropicVersion = "2023-06-01"
	maxLabelTokens   = 64
)

const systemPrompt = `You label grocery and retail products with a short generic category in Portuguese.
The label must describe the product type, never the brand or store.
Examples: "Leite UHT Integral", "Arroz Branco 5kg", "Café em Pó", "Detergente Líquido".
Answer with the label only, no punctuation or explanation.`

// AnthropicClassifier calls the Anthropic messages API to label a product.
type AnthropicClassifier struct {
	client  *resty.Client
	apiKey  string
	model   string
	baseURL string
	logger  zerolog.Logger
}

// Options configures the classifier.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicClassifier constructs the classifier. The API key is required.
func NewAnthropicClassifier(opts Options, logger zerolog.Logger) (*AnthropicClassifier, error) {
	if opts.APIKey == "" {
		return nil, errors.New("categorizer api key required")
	}
	if opts.Model == "" {
		return nil, errors.New("categorizer model required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)

	return &AnthropicClassifier{
		client:  client,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "categorizer").Logger(),
	}, nil
}

// Categorize asks the model for a generic label. Labels are trimmed of
// whitespace and surrounding quotes; an empty answer is an error.
func (c *AnthropicClassifier) Categorize(ctx context.Context, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", errors.New("product title required")
	}

	body := messagesRequest{
		Model:     c.model,
		MaxTokens: maxLabelTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: fmt.Sprintf("Product title: %s", title)},
		},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(body).
		Post(c.baseURL + "/v1/messages")
	if err != nil {
		return "", fmt.Errorf("categorize request: %w", err)
	}

	var payload messagesResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", fmt.Errorf("parse categorize response: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if payload.Error != nil {
			return "", fmt.Errorf("categorize api error (%d): %s", resp.StatusCode(), payload.Error.Message)
		}
		return "", fmt.Errorf("categorize api error (%d)", resp.StatusCode())
	}

	label := extractLabel(payload)
	if label == "" {
		return "", errors.New("categorize response contained no label")
	}

	c.logger.Debug().Str("title", title).Str("category", label).Msg("product categorized")
	return label, nil
}

func extractLabel(payload messagesResponse) string {
	for _, block := range payload.Content {
		if block.Type != "text" {
			continue
		}
		label := strings.TrimSpace(block.Text)
		label = strings.Trim(label, `"'`)
		label = strings.TrimSuffix(label, ".")
		if label != "" {
			return label
		}
	}
	return ""
}

var _ Categorizer = (*AnthropicClassifier)(nil)
