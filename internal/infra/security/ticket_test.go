//go:build !integration

package security

import (
	"testing"
	"time"
)

func TestTicketIssuer(t *testing.T) {
	t.Run("should mint a verifiable ticket carrying the claims", func(t *testing.T) {
		issuer, err := NewTicketIssuer("0123456789abcdef", time.Minute)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		ticket, err := issuer.Mint("conv-1", "proj-9")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}

		claims, err := issuer.Verify(ticket)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if claims.ConversationID != "conv-1" || claims.ProjectID != "proj-9" {
			t.Errorf("claims lost: %+v", claims)
		}
		if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Minute {
			t.Error("expiry not bounded by the configured ttl")
		}
	})

	t.Run("should reject a ticket signed with another secret", func(t *testing.T) {
		a, _ := NewTicketIssuer("0123456789abcdef", time.Minute)
		b, _ := NewTicketIssuer("fedcba9876543210", time.Minute)

		ticket, err := a.Mint("conv-1", "proj-9")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Verify(ticket); err == nil {
			t.Fatal("a foreign signature must not verify")
		}
	})

	t.Run("should refuse a weak secret", func(t *testing.T) {
		if _, err := NewTicketIssuer("short", time.Minute); err == nil {
			t.Fatal("expected an error for a short secret")
		}
	})
}
