package common

import (
	"context"
	"testing"
)

func TestUserContext_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if uc := UserContextFromContext(ctx); uc != nil {
		t.Error("Expected nil UserContext from empty context")
	}

	uc := &UserContext{
		UserAddress: "0xabc",
		ChainID:     1,
		Mode:        AuthModeSponsored,
	}
	ctx = WithUserContext(ctx, uc)

	got := UserContextFromContext(ctx)
	if got == nil {
		t.Fatal("Expected non-nil UserContext")
	}
	if got.UserAddress != "0xabc" {
		t.Errorf("Expected 0xabc, got %s", got.UserAddress)
	}
	if got.ChainID != 1 {
		t.Errorf("Expected chain id 1, got %d", got.ChainID)
	}
	if got.Mode != AuthModeSponsored {
		t.Errorf("Expected sponsored mode, got %s", got.Mode)
	}
}

func TestResolveUserAddress(t *testing.T) {
	ctx := context.Background()
	if got := ResolveUserAddress(ctx); got != "" {
		t.Errorf("Expected empty string, got %s", got)
	}

	ctx = WithUserContext(ctx, &UserContext{UserAddress: "0xdef"})
	if got := ResolveUserAddress(ctx); got != "0xdef" {
		t.Errorf("Expected 0xdef, got %s", got)
	}
}

func TestResolveAuthMode_DefaultsToDirect(t *testing.T) {
	ctx := context.Background()
	if got := ResolveAuthMode(ctx); got != AuthModeDirect {
		t.Errorf("Expected direct default, got %s", got)
	}

	ctx = WithUserContext(ctx, &UserContext{Mode: AuthModeSponsored})
	if got := ResolveAuthMode(ctx); got != AuthModeSponsored {
		t.Errorf("Expected sponsored override, got %s", got)
	}
}
