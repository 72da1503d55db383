package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/burgerbus/memberclub/internal/domain"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "memberclub", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := issuer.Issue(Identity{MemberID: "mem-1", Email: "a@example.com", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.MemberID != "mem-1" || id.Email != "a@example.com" || id.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "memberclub", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now()
	issuer.WithClock(func() time.Time { return base })
	token, err := issuer.Issue(Identity{MemberID: "mem-1", Role: domain.RoleMember})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	issuer.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	if _, err := issuer.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestVerifyForeignToken(t *testing.T) {
	mint, _ := NewTokenIssuer("secret-a", "memberclub", time.Hour)
	check, _ := NewTokenIssuer("secret-b", "memberclub", time.Hour)

	token, err := mint.Issue(Identity{MemberID: "mem-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := check.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign signature, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	mint, _ := NewTokenIssuer("test-secret", "someone-else", time.Hour)
	check, _ := NewTokenIssuer("test-secret", "memberclub", time.Hour)

	token, err := mint.Issue(Identity{MemberID: "mem-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := check.Verify(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong issuer, got %v", err)
	}
}

func TestVerifyUnknownRoleDowngradesToMember(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", "memberclub", time.Hour)

	token, err := issuer.Issue(Identity{MemberID: "mem-1", Role: domain.Role("superuser")})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	id, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.Role != domain.RoleMember {
		t.Fatalf("expected downgraded role member, got %q", id.Role)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !CheckPassword(hash, "hunter2password") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Fatal("expected mismatched password to fail")
	}
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected error for short password")
	}
}
