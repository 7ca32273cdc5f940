package token

import (
	"errors"
	"testing"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret")
	if err != nil {
		t.Fatalf("NewManager err: %v", err)
	}
	return m
}

func TestNewManagerRejectsEmptySecret(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateAndVerify(t *testing.T) {
	m := newManager(t)

	pair, err := m.GeneratePair("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}

	claims, err := m.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify err: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "user@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsRefreshToken(t *testing.T) {
	m := newManager(t)

	pair, err := m.GeneratePair("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}

	if _, err := m.Verify(pair.RefreshToken); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newManager(t)
	if _, err := m.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := m.Verify(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	m := newManager(t)
	other, _ := NewManager("different-secret")

	pair, err := other.GeneratePair("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}

	if _, err := m.Verify(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m := newManager(t)

	pair, err := m.GeneratePair("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}

	renewed, err := m.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh err: %v", err)
	}

	claims, err := m.Verify(renewed.AccessToken)
	if err != nil {
		t.Fatalf("Verify renewed err: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user: %s", claims.UserID)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	m := newManager(t)

	pair, err := m.GeneratePair("user-1", "user@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}

	if _, err := m.Refresh(pair.AccessToken); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}
