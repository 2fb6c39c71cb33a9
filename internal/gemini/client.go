// Package gemini implements text generation on Google's Gemini API.
// It produces fresh affirmations when the bot runs in generate mode.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/affirmabot/internal/config"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/resilience"
	"github.com/edgard/affirmabot/internal/sanitize"
)

// Client generates text from a prompt.
type Client interface {
	// Generate returns the model reply to prompt. An empty model selects the
	// configured default.
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// contentGenerator is the part of genai.Models used by the client.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	models           contentGenerator
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	breaker          *resilience.Breaker
	plain            *sanitize.Policy
}

// NewClient creates a Gemini client. It fails when no API key is configured.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.ModelName)
	return newClient(gi.Models, cfg, logger), nil
}

func newClient(models contentGenerator, cfg config.GeminiConfig, log *slog.Logger) *sdkClient {
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction + ResponseFormatInstruction}},
		},
	}

	return &sdkClient{
		models:           models,
		log:              log,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		breaker:          resilience.NewBreaker(resilience.BreakerConfig{
			Name:        "gemini",
			MaxFailures: cfg.BreakerFailures,
			Cooldown:    cfg.BreakerCooldown,
		}, log),
		plain: sanitize.NewPlainTextPolicy(),
	}
}

// Generate asks the model for a reply to prompt.
func (c *sdkClient) Generate(ctx context.Context, prompt, model string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperrors.NewGenerationError("generation prompt is empty", nil)
	}
	if model == "" {
		model = c.defaultModelName
	}

	c.log.DebugContext(ctx, "Generating text", "model", model, "prompt_length", len(prompt))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	var resp *genai.GenerateContentResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.generateContentWithRetries(ctx, model, contents, c.contentConfig)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.log.WarnContext(ctx, "Skipping generation, Gemini circuit is open")
		return "", apperrors.NewGenerationError("gemini is temporarily unavailable", err)
	}
	if err != nil {
		return "", apperrors.NewGenerationError("gemini API call failed", err)
	}

	text, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return "", apperrors.NewGenerationError("gemini returned no usable text", err)
	}

	c.log.InfoContext(ctx, "Text generated", "model", model, "length", len(text))
	return text, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		code := apiErrorCode(err)
		if code != 500 && code != 503 {
			return nil, err
		}
		if i == c.maxRetries {
			return nil, fmt.Errorf("gave up after %d retries (APIError code %d): %w", c.maxRetries, code, err)
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, err
}

// apiErrorCode returns the HTTP code of a genai.APIError in err's chain, or 0.
func apiErrorCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("no content, finish reason: %s", finishReason)
	}

	text := CleanText(c.plain.PlainText(resp.Text()))
	if text == "" {
		return "", errors.New("empty text after cleanup")
	}
	return text, nil
}

// CleanText trims whitespace and surrounding quotes from a model reply.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"«", "»"}, {"“", "”"}, {"„", "“"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
