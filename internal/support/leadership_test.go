package support

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunExclusiveWithoutRedisRunsDirectly(t *testing.T) {
	called := false
	err := RunExclusive(context.Background(), nil, "proxywarden:test", 0, 0, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("RunExclusive returned error: %v", err)
	}
	if !called {
		t.Fatal("expected run to be invoked without a redis client")
	}
}

func TestRunExclusivePropagatesRunError(t *testing.T) {
	want := errors.New("boom")
	err := RunExclusive(context.Background(), nil, "proxywarden:test", 0, 0, func(context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("RunExclusive returned %v, want %v", err, want)
	}
}

func TestRunExclusiveRequiresRunFunc(t *testing.T) {
	if err := RunExclusive(context.Background(), nil, "k", 0, 0, nil); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestGenerateLockIDUnique(t *testing.T) {
	first, second := generateLockID(), generateLockID()
	if first == second {
		t.Fatalf("generateLockID returned duplicate id %s", first)
	}
	if !strings.Contains(first, "-") {
		t.Fatalf("unexpected lock id format %s", first)
	}
}
