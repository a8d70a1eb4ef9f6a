package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.category.String(); got != tt.expected {
				t.Errorf("Category(%d).String() = %s, want %s", tt.category, got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"transient wrapper", Transient(errors.New("broker down"), "publish"), CategoryTransient},
		{"permanent wrapper", Permanent(errors.New("bad"), "publish"), CategoryPermanent},
		{"bad conn", &StorageError{Op: "select", Err: driver.ErrBadConn}, CategoryTransient},
		{"constraint", &StorageError{Op: "insert", Err: errors.New("FOREIGN KEY constraint failed")}, CategoryPermanent},
		{"cancelled", fmt.Errorf("publish: %w", context.Canceled), CategoryPermanent},
		{"cancelled inside transient", Transient(context.Canceled, "publish"), CategoryPermanent},
		{"validation", Invalid("id", "not a number"), CategoryPermanent},
		{"unknown", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"storage", Storage("insert event", errors.New("boom")), CodeStorage},
		{"not found", NotFound("start", 7), CodeNotFound},
		{"wrapped not found", fmt.Errorf("resolve: %w", NotFound("start", 7)), CodeNotFound},
		{"forbidden", &ForbiddenError{Required: "admin"}, CodeForbidden},
		{"decode", &DecodeError{Payload: []byte("{"), Err: errors.New("eof")}, CodeDecode},
		{"validation", Invalid("id", "not a number"), CodeBadRequest},
		{"other", errors.New("x"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	if !errors.Is(NotFound("attendee", 1), ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if !errors.Is(&ForbiddenError{Required: "admin"}, ErrForbidden) {
		t.Error("ForbiddenError should match ErrForbidden")
	}
	if !errors.Is(Invalid("id", "bad"), ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
	if errors.Is(Invalid("id", "bad"), ErrNotFound) {
		t.Error("ValidationError should not match ErrNotFound")
	}
}

func TestStorage(t *testing.T) {
	if Storage("op", nil) != nil {
		t.Fatal("Storage(nil) should be nil")
	}

	inner := errors.New("disk full")
	err := Storage("insert start", inner)
	if !errors.Is(err, inner) {
		t.Error("StorageError should unwrap to driver error")
	}
	if got := err.Error(); got != "storage: insert start: disk full" {
		t.Errorf("Error() = %q", got)
	}

	// Already a storage error: not double wrapped
	if again := Storage("commit", err); again != err {
		t.Error("Storage should not re-wrap a StorageError")
	}
}

func TestExtensions(t *testing.T) {
	ext := Invalid("id", "bad").Extensions()
	if ext["code"] != CodeBadRequest || ext["field"] != "id" {
		t.Errorf("unexpected extensions: %v", ext)
	}
	if NotFound("start", 3).Extensions()["entity"] != "start" {
		t.Error("expected entity in not-found extensions")
	}
}

func TestWithRetryContext(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		res := WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, Transient(errors.New("flaky"), "publish")
			}
			return 42, nil
		})
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Value != 42 || res.Attempts != 3 {
			t.Errorf("got value=%d attempts=%d", res.Value, res.Attempts)
		}
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		res := WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			calls++
			return 0, errors.New("permanent")
		})
		if res.Err == nil || calls != 1 {
			t.Errorf("expected single failing attempt, got calls=%d err=%v", calls, res.Err)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		res := WithRetryContext(context.Background(), fast, func(context.Context) (int, error) {
			return 0, Transient(errors.New("down"), "publish")
		})
		var catErr *CategorizedError
		if !errors.As(res.Err, &catErr) || catErr.Context != "max retries exceeded" {
			t.Errorf("expected max retries error, got %v", res.Err)
		}
		if res.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", res.Attempts)
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := WithRetryContext(ctx, fast, func(context.Context) (int, error) {
			t.Fatal("fn should not run")
			return 0, nil
		})
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", res.Err)
		}
	})
}
