// File: internal/infra/security/ticket.go
package security

import (
	"errors"
	"fmt"
	"time"

	"agent-compute-platform/internal/domain/ports/adapter"

	"github.com/golang-jwt/jwt/v5"
)

var _ adapter.TicketIssuer = (*TicketIssuer)(nil)

// TicketClaims travel with every backend-bound invocation.
type TicketClaims struct {
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	jwt.RegisteredClaims
}

// TicketIssuer mints short-lived HMAC tickets the credential guard injects
// into tool calls.
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTicketIssuer(secret string, ttl time.Duration) (*TicketIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("ticket secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TicketIssuer{secret: []byte(secret), ttl: ttl}, nil
}

func (t *TicketIssuer) Mint(conversationID, projectID string) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		ConversationID: conversationID,
		ProjectID:      projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			Subject:   conversationID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses a ticket back into its claims; used by tests and any local
// backend stub that wants to honor the contract.
func (t *TicketIssuer) Verify(ticket string) (*TicketClaims, error) {
	var claims TicketClaims
	tok, err := jwt.ParseWithClaims(ticket, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid ticket")
	}
	return &claims, nil
}
