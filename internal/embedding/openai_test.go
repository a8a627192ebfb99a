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
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func TestNewOpenAIProvider(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		expectErr bool
	}{
		{"Valid key", "sk-test-key", false},
		{"Empty key", "", true},
		{"Wrong prefix", "api-test-key", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenAIProvider(tt.apiKey, zap.NewNop())
			if tt.expectErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if p == nil {
				t.Fatal("Expected a provider")
			}
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	p := &OpenAIProvider{logger: zap.NewNop()}

	tests := []struct {
		name       string
		statusCode int
		retryable  bool
	}{
		{"Rate limited", http.StatusTooManyRequests, true},
		{"Internal server error", http.StatusInternalServerError, true},
		{"Bad gateway", http.StatusBadGateway, true},
		{"Service unavailable", http.StatusServiceUnavailable, true},
		{"Gateway timeout", http.StatusGatewayTimeout, true},
		{"Unauthorized", http.StatusUnauthorized, false},
		{"Bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &openai.APIError{
				HTTPStatusCode: tt.statusCode,
				Message:        "api failure",
			}

			err := p.handleAPIError(apiErr)
			if err == nil {
				t.Fatal("Expected an error")
			}

			var retryErr *RetryableError
			isRetryable := errors.As(err, &retryErr)
			if isRetryable != tt.retryable {
				t.Errorf("Expected retryable=%v for status %d, got %v", tt.retryable, tt.statusCode, isRetryable)
			}
			if isRetryable && retryErr.StatusCode != tt.statusCode {
				t.Errorf("Expected status code %d, got %d", tt.statusCode, retryErr.StatusCode)
			}
		})
	}
}

func TestHandleAPIError_NonAPIError(t *testing.T) {
	p := &OpenAIProvider{logger: zap.NewNop()}

	err := p.handleAPIError(errors.New("connection refused"))
	if err == nil {
		t.Fatal("Expected an error")
	}

	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		t.Error("Expected non-API errors to not be retryable")
	}
}

func TestRetryableErrorMessage(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "rate limited"}
	expected := "retryable error (status 429): rate limited"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestValidateDimensions(t *testing.T) {
	valid := [][]float32{make([]float32, ExpectedEmbeddingDimensions)}
	if err := validateDimensions(valid); err != nil {
		t.Errorf("Unexpected error for valid dimensions: %v", err)
	}

	invalid := [][]float32{make([]float32, 3)}
	if err := validateDimensions(invalid); err == nil {
		t.Error("Expected an error for wrong dimensions")
	}
}
