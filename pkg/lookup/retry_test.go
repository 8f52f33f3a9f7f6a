package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_ForClass(t *testing.T) {
	base := DefaultRetryConfig()

	tests := []struct {
		name            string
		errorClass      ErrorClass
		expectedInitial time.Duration
	}{
		{"server error", ErrorClassServer, 1 * time.Second},
		{"rate limit", ErrorClassRateLimit, 5 * time.Second},
		{"network error", ErrorClassNetwork, 2 * time.Second},
		{"unknown class", "", 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := base.forClass(tt.errorClass)
			if got.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", got.InitialBackoff, tt.expectedInitial)
			}
			if got.MaxAttempts != base.MaxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, base.MaxAttempts)
			}
		})
	}

	capped := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second}
	if got := capped.forClass(ErrorClassRateLimit).InitialBackoff; got != 2*time.Second {
		t.Errorf("capped InitialBackoff = %v, want 2s", got)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &LookupError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "503 Service Unavailable"}
	clientErr := &LookupError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "404 Not Found"}

	tests := []struct {
		name          string
		failures      []error
		maxAttempts   int
		wantCalls     int
		wantErr       bool
		wantExhausted bool
	}{
		{"success first try", nil, 3, 1, false, false},
		{"success after retry", []error{serverErr, serverErr}, 3, 3, false, false},
		{"client error not retried", []error{clientErr}, 3, 1, true, false},
		{"unclassified error not retried", []error{errors.New("boom")}, 3, 1, true, false},
		{"exhausted", []error{serverErr, serverErr, serverErr}, 3, 3, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetry(tt.maxAttempts), zerolog.Nop(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("retryWithBackoff() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if got := errors.Is(err, ErrRetryExhausted); got != tt.wantExhausted {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", got, tt.wantExhausted)
			}
		})
	}
}

func TestRetryWithBackoff_ExhaustedKeepsCause(t *testing.T) {
	serverErr := &LookupError{StatusCode: 500, ErrorClass: ErrorClassServer}
	err := retryWithBackoff(context.Background(), fastRetry(2), zerolog.Nop(), func() error {
		return serverErr
	})

	var le *LookupError
	if !errors.As(err, &le) || le.StatusCode != 500 {
		t.Errorf("errors.As(err, *LookupError) failed for %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Minute,
		MaxBackoff:        time.Minute,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	err := retryWithBackoff(ctx, cfg, zerolog.Nop(), func() error {
		calls++
		cancel()
		return &LookupError{ErrorClass: ErrorClassNetwork}
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
