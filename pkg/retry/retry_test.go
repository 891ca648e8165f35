package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/logger"
)

func testConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewTestLogger(),
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.KindNetwork, 0, "connection reset")
		}
		return nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsImmediatelyOnAuthError(t *testing.T) {
	attempts := 0
	authErr := errs.New(errs.KindAuth, 98, "invalid token")
	err := Do(func() error {
		attempts++
		return authErr
	}, testConfig(5))

	if attempts != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", attempts)
	}
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != errs.KindAuth {
		t.Errorf("expected the auth error back, got %v", err)
	}
}

func TestDoExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.New(errs.KindServerError, 500, "unavailable")
	}, testConfig(3))

	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(0)
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			return errs.New(errs.KindNetwork, 0, "flaky")
		}, cfg)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.New(errs.KindRateLimit, 429, "slow down")
		}
		return "payload", nil
	}, testConfig(5))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("expected result to survive the retry, got %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil", nil, false},
		{"network", errs.New(errs.KindNetwork, 0, "x"), true},
		{"auth", errs.New(errs.KindAuth, 98, "x"), false},
		{"not found", errs.New(errs.KindNotFound, 404, "x"), false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("something"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.retry {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", test.err, got, test.retry)
			}
		})
	}
}
