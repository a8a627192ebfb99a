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

package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fastConfig(maxRetries int) BackoffConfig {
	return BackoffConfig{
		BaseDelay:   time.Millisecond,
		MaxRetries:  maxRetries,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
		RetryOnFunc: DefaultRetryOnFunc,
	}
}

func TestWithExponentialBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), zap.NewNop(), fastConfig(3), func(_ context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), zap.NewNop(), fastConfig(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithExponentialBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), zap.NewNop(), fastConfig(2), func(_ context.Context) error {
		calls++
		return errors.New("persistent failure")
	})

	if err == nil {
		t.Fatal("Expected an error")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls for 2 retries, got %d", calls)
	}
	if !strings.Contains(err.Error(), "operation failed after 3 attempts") {
		t.Errorf("Expected attempt count in error, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "persistent failure") {
		t.Errorf("Expected wrapped cause in error, got %q", err.Error())
	}
}

func TestWithExponentialBackoff_NonRetryableStops(t *testing.T) {
	calls := 0
	config := fastConfig(3)
	config.RetryOnFunc = func(error) bool { return false }

	err := WithExponentialBackoff(context.Background(), zap.NewNop(), config, func(_ context.Context) error {
		calls++
		return errors.New("fatal")
	})

	if err == nil || err.Error() != "fatal" {
		t.Fatalf("Expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := fastConfig(3)
	config.BaseDelay = time.Second

	err := WithExponentialBackoff(ctx, zap.NewNop(), config, func(_ context.Context) error {
		cancel()
		return errors.New("transient failure")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestDefaultRetryOnFunc(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"Nil error", nil, false},
		{"Context cancelled", context.Canceled, false},
		{"Deadline exceeded", context.DeadlineExceeded, false},
		{"Generic error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryOnFunc(tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRetryWithMaxAttempts(t *testing.T) {
	calls := 0
	err := RetryWithMaxAttempts(context.Background(), zap.NewNop(), 0, func(_ context.Context) error {
		calls++
		return errors.New("failure")
	})

	if err == nil {
		t.Fatal("Expected an error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call with zero retries, got %d", calls)
	}
}

func TestDefaultBackoffConfig(t *testing.T) {
	config := DefaultBackoffConfig()

	if config.BaseDelay != time.Second {
		t.Errorf("Expected 1s base delay, got %v", config.BaseDelay)
	}
	if config.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected %d max retries, got %d", DefaultMaxRetries, config.MaxRetries)
	}
	if config.MaxDelay != DefaultMaxDelay {
		t.Errorf("Expected %v max delay, got %v", DefaultMaxDelay, config.MaxDelay)
	}
	if !config.Jitter {
		t.Error("Expected jitter enabled")
	}
	if config.RetryOnFunc == nil {
		t.Error("Expected a retry predicate")
	}
}
