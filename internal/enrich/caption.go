package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const ellipsis = "..."

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxLength int
	Sport     string
}

// Client generates short social captions through an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxLength int
	sport     string
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	sport := cfg.Sport
	if sport == "" {
		sport = "hockey"
	}

	return &Client{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxLength: cfg.MaxLength,
		sport:     sport,
		logger:    logger.With("component", "enrich"),
	}
}

// Caption returns a generated caption, or false when generation failed for
// any reason. Callers fall back to the title.
func (c *Client) Caption(ctx context.Context, title, description string, highlight bool) (string, bool) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(c.sport, title, description, highlight, Classify(title, description), c.maxLength)

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   250,
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("caption request failed",
			"error", err,
			"duration", duration,
			"model", c.model,
		)
		return "", false
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("caption response has no choices", "duration", duration, "model", c.model)
		return "", false
	}

	caption := clean(resp.Choices[0].Message.Content)
	if caption == "" {
		c.logger.Warn("caption response is empty", "duration", duration, "model", c.model)
		return "", false
	}

	c.logger.Debug("caption generated",
		"duration", duration,
		"length", len([]rune(caption)),
	)

	return Truncate(caption, c.maxLength), true
}

// Truncate shortens s to max runes, replacing the tail with an ellipsis so
// the result is exactly max runes long. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(runes[:max])
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

// BuildPrompt renders the caption instructions for one item.
func BuildPrompt(sport, title, description string, highlight bool, tone Tone, maxLength int) string {
	var b strings.Builder

	if highlight {
		fmt.Fprintf(&b, "Write a short, engaging social media post about this %s highlight video.\n", sport)
	} else {
		fmt.Fprintf(&b, "Write a short, engaging social media post about this %s news article.\n", sport)
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	fmt.Fprintf(&b, "Content category: %s\n", tone.Category)
	fmt.Fprintf(&b, "Required emoji: %s\n", tone.Emoji)
	fmt.Fprintf(&b, "Required hashtags: %s\n", strings.Join(tone.Hashtags, " "))
	b.WriteString("Requirements:\n")
	if maxLength > 0 {
		fmt.Fprintf(&b, "- MUST BE NO MORE THAN %d CHARACTERS TOTAL\n", maxLength)
	}
	fmt.Fprintf(&b, "- Include the %s emoji and end with the hashtags %s\n", tone.Emoji, strings.Join(tone.Hashtags, " "))
	b.WriteString("- ONLY use player and team names present in the title or description\n")
	b.WriteString("- DO NOT make up information, guess first names, or include questions\n")
	b.WriteString("- ONLY output the final post text with no prefix, placeholders or quotation marks\n")

	return b.String()
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"“”")
	return strings.TrimSpace(s)
}
