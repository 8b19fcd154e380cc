// Package gemini generates flashcards and study tips with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashcards/internal/models"
	"flashcards/internal/ratelimit"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const limiterKey = "gemini"

// contentModel is the part of *genai.GenerativeModel the client calls.
type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client wraps the Gemini API client
type Client struct {
	client     *genai.Client
	model      contentModel
	limiter    ratelimit.Limiter
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new Gemini client. Every request first passes through limiter.
func NewClient(ctx context.Context, cfg Config, limiter ratelimit.Limiter, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.4),
		TopP:             genai.Ptr[float32](0.9),
		MaxOutputTokens:  genai.Ptr[int32](4096),
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	c := newClient(model, limiter, logger, cfg)
	c.client = client
	return c, nil
}

func newClient(model contentModel, limiter ratelimit.Limiter, logger *zap.Logger, cfg Config) *Client {
	return &Client{
		model:      model,
		limiter:    limiter,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Close closes the Gemini client
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GenerateFlashcards asks the model for up to n flashcards covering text.
func (c *Client) GenerateFlashcards(ctx context.Context, text string, n int) ([]models.GeneratedCard, error) {
	var cards []models.GeneratedCard
	err := c.generate(ctx, BuildFlashcardsPrompt(text, n), func(raw string) error {
		parsed, err := parseFlashcards(raw, n)
		if err != nil {
			return err
		}
		cards = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Generated flashcards", zap.Int("requested", n), zap.Int("returned", len(cards)))
	return cards, nil
}

// GenerateStudyTips asks the model for advice on studying cards.
func (c *Client) GenerateStudyTips(ctx context.Context, cards []models.GeneratedCard) ([]string, error) {
	if len(cards) == 0 {
		return []string{}, nil
	}

	var tips []string
	err := c.generate(ctx, BuildStudyTipsPrompt(cards), func(raw string) error {
		parsed, err := parseStudyTips(raw)
		if err != nil {
			return err
		}
		tips = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tips, nil
}

// generate sends prompt and hands the response text to parse, retrying on API errors,
// empty responses and parse failures.
func (c *Client) generate(ctx context.Context, prompt string, parse func(string) error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))

			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("gemini request cancelled: %w", ctx.Err())
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, limiterKey); err != nil {
				return fmt.Errorf("rate limit wait cancelled: %w", err)
			}
		}

		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("gemini request cancelled: %w", err)
			}
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		text, err := responseText(resp)
		if err != nil {
			lastErr = err
			c.logger.Error("Unusable Gemini response", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if err := parse(text); err != nil {
			lastErr = err
			c.logger.Error("Failed to parse Gemini response",
				zap.Error(err),
				zap.String("original_response", text),
				zap.Int("attempt", attempt+1))
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from gemini")
	}
	return string(textPart), nil
}

// ModelInfo returns model information
func (c *Client) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "gemini",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
