package token

import (
	"testing"
	"time"
)

func TestResetToken_RoundTrip(t *testing.T) {
	s := NewSigner("test-secret")

	tok, err := s.IssueReset(42, 10*time.Minute)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}

	id, ok := s.VerifyReset(tok)
	if !ok {
		t.Fatal("expected token to verify")
	}
	if id != 42 {
		t.Fatalf("expected user id 42, got %d", id)
	}
}

// A token issued with ttl=0 is already expired.
func TestResetToken_ZeroTTL(t *testing.T) {
	s := NewSigner("test-secret")

	tok, err := s.IssueReset(42, 0)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}

	if _, ok := s.VerifyReset(tok); ok {
		t.Fatal("expected zero-ttl token to be rejected")
	}
}

// A token signed with a different secret is rejected regardless of expiry.
func TestResetToken_WrongSecret(t *testing.T) {
	issuer := NewSigner("secret-one")
	verifier := NewSigner("secret-two")

	tok, err := issuer.IssueReset(42, time.Hour)
	if err != nil {
		t.Fatalf("IssueReset failed: %v", err)
	}

	if _, ok := verifier.VerifyReset(tok); ok {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestResetToken_Garbage(t *testing.T) {
	s := NewSigner("test-secret")

	for _, tok := range []string{"", "not-a-token", "eyJhbGciOiJIUzI1NiJ9.broken.sig"} {
		if _, ok := s.VerifyReset(tok); ok {
			t.Fatalf("expected garbage token %q to be rejected", tok)
		}
	}
}

// A session token must not verify as a reset token even though it is
// signed with the same secret.
func TestResetToken_SessionTokenRejected(t *testing.T) {
	s := NewSigner("test-secret")

	tok, err := s.IssueSession(42, false, time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	if _, ok := s.VerifyReset(tok); ok {
		t.Fatal("expected session token to be rejected by VerifyReset")
	}
}
