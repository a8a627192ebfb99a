// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// EmbeddingModel defines the model to use for embeddings
	EmbeddingModel = openai.SmallEmbedding3
	// ExpectedEmbeddingDimensions defines the expected embedding dimensions
	ExpectedEmbeddingDimensions = 1536
	// MaxRetries defines the maximum number of retry attempts
	MaxRetries = 3
	// BaseRetryDelay defines the base delay for exponential backoff
	BaseRetryDelay = time.Second
)

// RetryableError represents an error that can be retried
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// OpenAIProvider implements Provider against the OpenAI embeddings API with
// exponential-backoff retries.
type OpenAIProvider struct {
	client *openai.Client
	logger *zap.Logger
	model  openai.EmbeddingModel
}

// NewOpenAIProvider creates an OpenAI-backed embedding provider. The API key
// is validated for shape only; connectivity problems surface on first use and
// are handled by the caller's degradation policy.
func NewOpenAIProvider(apiKey string, logger *zap.Logger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return nil, fmt.Errorf("invalid API key format")
	}

	p := &OpenAIProvider{
		client: openai.NewClient(apiKey),
		logger: logger,
		model:  EmbeddingModel,
	}

	logger.Info("OpenAI embedding provider initialized",
		zap.String("model", string(EmbeddingModel)),
		zap.Int("expected_dimensions", ExpectedEmbeddingDimensions),
		zap.Int("max_retries", MaxRetries),
	)
	return p, nil
}

// Embed generates embeddings for the given texts with retry logic.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings, err := p.embedWithRetry(ctx, texts)
	if err != nil {
		p.logger.Error("Failed to create embeddings",
			zap.Error(err),
			zap.Int("text_count", len(texts)),
		)
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if err := validateDimensions(embeddings); err != nil {
		return nil, fmt.Errorf("embedding validation failed: %w", err)
	}
	return embeddings, nil
}

// embedWithRetry creates embeddings with exponential backoff retry logic.
func (p *OpenAIProvider) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", MaxRetries),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		embeddings, err := p.createEmbeddings(ctx, texts)
		if err != nil {
			lastErr = err

			if retryErr, ok := err.(*RetryableError); ok {
				delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				p.logger.Warn("Retryable error encountered",
					zap.Error(err),
					zap.Int("status_code", retryErr.StatusCode),
					zap.Duration("next_retry_delay", delay),
				)
				continue
			}

			return nil, err
		}

		if attempt > 0 {
			p.logger.Info("Embedding request succeeded after retry",
				zap.Int("attempt", attempt+1),
			)
		}
		return embeddings, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

func (p *OpenAIProvider) createEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, p.handleAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected response: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, embedding := range resp.Data {
		embeddings[i] = embedding.Embedding
	}
	return embeddings, nil
}

// handleAPIError determines whether an OpenAI API error is retryable.
func (p *OpenAIProvider) handleAPIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		default:
			return fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}
	return fmt.Errorf("OpenAI client error: %w", err)
}

func validateDimensions(embeddings [][]float32) error {
	for i, embedding := range embeddings {
		if len(embedding) != ExpectedEmbeddingDimensions {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(embedding), ExpectedEmbeddingDimensions)
		}
	}
	return nil
}
