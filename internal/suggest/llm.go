package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/seo-tools/trendtags/internal/telemetry"
	"github.com/seo-tools/trendtags/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Defaults for the chat model.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 1024

	// maxContentRunes bounds page content embedded in a prompt.
	maxContentRunes = 12000
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("LLM not configured: OPENAI_API_KEY is required")

// LLMConfig configures the OpenAI-compatible chat client.
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
	// MaxRetries is passed to the client; nil keeps the client default.
	MaxRetries *int
}

// LLM is a Generator backed by an OpenAI-compatible chat completions API. Temperature is always 0.
type LLM struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
	logger    *logrus.Logger
}

// NewLLM creates an LLM generator.
func NewLLM(cfg LLMConfig, logger *logrus.Logger) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpclient.NewHTTPClientWithProxyAndLogger(cfg.Timeout, logger)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	client := openai.NewClient(opts...)
	return &LLM{
		client:    &client,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Model returns the configured model name.
func (l *LLM) Model() string {
	return l.model
}

// Keywords asks for 15-20 comma-separated keywords.
func (l *LLM) Keywords(ctx context.Context, content string) ([]string, error) {
	text, err := l.complete(ctx, "keywords", fmt.Sprintf(keywordPrompt, clip(content)))
	if err != nil {
		return nil, fmt.Errorf("keyword extraction failed: %w", err)
	}
	return SplitList(text), nil
}

// Hashtags asks for 20 hashtags built from keywords and content.
func (l *LLM) Hashtags(ctx context.Context, keywords []string, content string) ([]string, error) {
	prompt := fmt.Sprintf(hashtagPrompt, strings.Join(keywords, ", "), clip(content))
	text, err := l.complete(ctx, "hashtags", prompt)
	if err != nil {
		return nil, fmt.Errorf("hashtag generation failed: %w", err)
	}
	return CleanHashtags(SplitList(text)), nil
}

// SelectTop asks the model to pick the 20 most relevant trending tags.
func (l *LLM) SelectTop(ctx context.Context, trending, keywords []string, content string) []string {
	if len(trending) == 0 {
		return nil
	}
	prompt := fmt.Sprintf(selectPrompt, strings.Join(trending, ", "), strings.Join(keywords, ", "), clip(content))
	text, err := l.complete(ctx, "select", prompt)
	if err != nil {
		l.logger.WithError(err).Warn("Hashtag selection failed, keeping trending order")
		return firstN(trending, MaxHashtags)
	}

	selected := CleanHashtags(SplitList(text))
	if len(selected) == 0 {
		return firstN(trending, MaxHashtags)
	}
	return selected
}

func (l *LLM) complete(ctx context.Context, requestType, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNameLLMExecute,
		attribute.String(telemetry.AttrLLMSystem, "openai"),
		attribute.String(telemetry.AttrLLMModel, l.model),
		attribute.String(telemetry.AttrLLMRequestType, requestType),
	)

	start := time.Now()
	response, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       l.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(int64(l.maxTokens)),
		Temperature: openai.Float(0),
	})
	if err != nil {
		telemetry.EndSpan(span, err)
		return "", err
	}
	if len(response.Choices) == 0 {
		err := errors.New("no response choices returned from LLM")
		telemetry.EndSpan(span, err)
		return "", err
	}

	span.SetAttributes(attribute.Int64(telemetry.AttrLLMTotalTokens, response.Usage.TotalTokens))
	telemetry.EndSpan(span, nil)

	l.logger.WithFields(logrus.Fields{
		"request_type": requestType,
		"model":        l.model,
		"tokens":       response.Usage.TotalTokens,
		"duration":     time.Since(start).String(),
	}).Debug("LLM request complete")

	return response.Choices[0].Message.Content, nil
}

func clip(content string) string {
	if utf8.RuneCountInString(content) <= maxContentRunes {
		return content
	}
	return string([]rune(content)[:maxContentRunes])
}
