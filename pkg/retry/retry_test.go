package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryer_Success(t *testing.T) {
	config := EnableRetry(3, 100*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return nil
	}

	err = retryer.Do(context.Background(), fn)
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	config := EnableRetry(5, 10*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	start := time.Now()
	err = retryer.Do(context.Background(), fn)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	if duration < 20*time.Millisecond {
		t.Errorf("Expected delays between retries, duration was too short: %v", duration)
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	config := EnableRetry(3, 10*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("persistent error")
	}

	err = retryer.Do(context.Background(), fn)
	if err == nil {
		t.Error("Expected error after max attempts")
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_ExponentialBackoff(t *testing.T) {
	config := EnableRetry(4, 100*time.Millisecond)
	config.BackoffStrategy = BackoffExponential
	config.BackoffMultiplier = 2.0
	config.Jitter = 0

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	delays := []time.Duration{}
	attempts := 0
	lastAttempt := time.Now()

	fn := func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastAttempt))
		}
		lastAttempt = time.Now()
		return errors.New("error")
	}

	retryer.Do(context.Background(), fn)

	// 100ms, 200ms, 400ms
	if len(delays) < 2 {
		t.Fatalf("Expected at least 2 delays, got %d", len(delays))
	}

	ratio := float64(delays[1]) / float64(delays[0])
	if ratio < 1.8 || ratio > 2.2 {
		t.Errorf("Expected exponential backoff ratio ~2.0, got %.2f (delays: %v, %v)", ratio, delays[0], delays[1])
	}
}

func TestRetryer_ConstantBackoff(t *testing.T) {
	config := EnableRetry(3, 50*time.Millisecond)
	config.BackoffStrategy = BackoffConstant
	config.Jitter = 0

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	delays := []time.Duration{}
	attempts := 0
	var lastTime time.Time

	fn := func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		return errors.New("error")
	}

	retryer.Do(context.Background(), fn)

	for _, delay := range delays {
		if delay < 45*time.Millisecond || delay > 55*time.Millisecond {
			t.Errorf("Expected constant delay ~50ms, got %v", delay)
		}
	}
}

func TestRetryer_ContextCancellation(t *testing.T) {
	config := EnableRetry(10, 100*time.Millisecond)
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	err = retryer.Do(ctx, fn)
	if err == nil {
		t.Error("Expected context cancellation error")
	}

	// The third attempt may already be running when cancel lands.
	if attempts > 3 {
		t.Errorf("Expected max 3 attempts with context cancellation, got %d", attempts)
	}
}

func TestRetryer_OnRetryCallback(t *testing.T) {
	callbackCalls := 0
	config := EnableRetry(3, 10*time.Millisecond)
	config.OnRetry = func(attempt int, err error, delay time.Duration) {
		callbackCalls++
	}

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("error")
	}

	retryer.Do(context.Background(), fn)

	// 3 attempts = 2 sleeps
	expectedCallbacks := 2
	if callbackCalls != expectedCallbacks {
		t.Errorf("Expected %d callback calls, got %d", expectedCallbacks, callbackCalls)
	}
}

func TestRetryer_RetryableErrors(t *testing.T) {
	config := EnableRetry(3, 10*time.Millisecond)
	config.RetryableErrors = []string{"timeout", "connection refused"}

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn1 := func(ctx context.Context) error {
		attempts++
		return errors.New("connection refused")
	}

	retryer.Do(context.Background(), fn1)
	if attempts != 3 {
		t.Errorf("Expected 3 retries for retryable error, got %d", attempts)
	}

	attempts = 0
	fn2 := func(ctx context.Context) error {
		attempts++
		return errors.New("invalid input")
	}

	retryer.Do(context.Background(), fn2)
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryer_Disabled(t *testing.T) {
	config := DefaultConfig() // disabled by default
	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}

	attempts := 0
	fn := func(ctx context.Context) error {
		attempts++
		return errors.New("error")
	}

	err = retryer.Do(context.Background(), fn)
	if err == nil {
		t.Error("Expected error when retry disabled")
	}

	if attempts != 1 {
		t.Errorf("Expected 1 attempt when retry disabled, got %d", attempts)
	}
}

func TestRetryer_Classifier(t *testing.T) {
	permanent := errors.New("login failed")
	config := EnableRetry(5, time.Millisecond)
	config.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	retryer, err := NewRetryer(config)
	if err != nil {
		t.Fatalf("NewRetryer() error = %v", err)
	}

	attempts := 0
	err = retryer.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	if !errors.Is(err, ErrNonRetryable) || !errors.Is(err, permanent) {
		t.Errorf("Do() error = %v, want ErrNonRetryable wrapping the cause", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative attempts", func(c *Config) { c.MaxAttempts = -1 }, true},
		{"max below initial", func(c *Config) { c.MaxDelay = c.InitialDelay / 2 }, true},
		{"unknown backoff", func(c *Config) { c.BackoffStrategy = "fibonacci" }, true},
		{"jitter too large", func(c *Config) { c.Jitter = 1.5 }, true},
		{"zero multiplier defaulted", func(c *Config) { c.BackoffMultiplier = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := EnableRetry(3, time.Second)
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
