package oauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewStateToken(t *testing.T) {
	tok, err := NewStateToken()
	if err != nil {
		t.Fatalf("NewStateToken() error = %v", err)
	}
	if len(tok) != 32 {
		t.Errorf("NewStateToken() length = %d, want 32 hex chars", len(tok))
	}

	other, _ := NewStateToken()
	if tok == other {
		t.Error("NewStateToken() returned the same token twice")
	}
}

func TestMemoryStateStore_ValidateOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	tok, err := store.Issue(ctx, "session-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := store.Validate(ctx, "session-1", tok); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	// The token is consumed on the first attempt.
	if err := store.Validate(ctx, "session-1", tok); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("second Validate() error = %v, want ErrStateInvalid", err)
	}
}

func TestMemoryStateStore_Mismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	tok, _ := store.Issue(ctx, "session-1")

	if err := store.Validate(ctx, "session-1", "forged"); !errors.Is(err, ErrStateInvalid) {
		t.Fatalf("Validate(forged) error = %v, want ErrStateInvalid", err)
	}

	// A mismatch still burns the stored token.
	if err := store.Validate(ctx, "session-1", tok); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Validate() after mismatch error = %v, want ErrStateInvalid", err)
	}
}

func TestMemoryStateStore_UnknownSession(t *testing.T) {
	store := NewMemoryStateStore()
	if err := store.Validate(context.Background(), "never-issued", "tok"); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Validate() error = %v, want ErrStateInvalid", err)
	}
}

func TestMemoryStateStore_Reissue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()

	first, _ := store.Issue(ctx, "session-1")
	second, _ := store.Issue(ctx, "session-1")
	if first == second {
		t.Fatal("Issue() reused a token for the same session")
	}

	// A fresh issue replaces the earlier token.
	if err := store.Validate(ctx, "session-1", first); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Validate(stale) error = %v, want ErrStateInvalid", err)
	}
}

func TestMemoryStateStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore().(*memoryStateStore)

	tok, _ := store.Issue(ctx, "session-1")
	store.mu.Lock()
	store.pending["session-1"] = memoryState{token: tok, expires: time.Now().Add(-time.Second)}
	store.mu.Unlock()

	if err := store.Validate(ctx, "session-1", tok); !errors.Is(err, ErrStateInvalid) {
		t.Errorf("Validate(expired) error = %v, want ErrStateInvalid", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	google := NewClient(GoogleDescriptor(googleTestConfig()))
	microsoft := NewClient(MicrosoftDescriptor(microsoftTestConfig()))

	reg.Register(google)
	reg.Register(microsoft)

	if _, ok := reg.Get(ProviderGoogle); !ok {
		t.Error("Get(google) not found after Register")
	}
	if _, ok := reg.Get(Provider("github")); ok {
		t.Error("Get(github) should not be found")
	}

	names := reg.List()
	if len(names) != 2 || names[0] != "google" || names[1] != "microsoft" {
		t.Errorf("List() = %v, want [google microsoft]", names)
	}
}
