package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims билета
const (
	jwtClaimBracketID = "bracket_id"
	jwtClaimPurpose   = "purpose"

	ticketPurpose = "socket"
)

// DefaultTicketTTL bounds how long a page bootstrap stays usable.
const DefaultTicketTTL = 24 * time.Hour

var ErrInvalidTicket = errors.New("invalid or expired socket ticket")

// TicketIssuer signs and verifies HS256 tickets binding a client to a bracket.
type TicketIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTicketIssuer(secret string, ttl time.Duration) *TicketIssuer {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *TicketIssuer) Issue(bracketID int) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		jwtClaimBracketID: bracketID,
		jwtClaimPurpose:   ticketPurpose,
		"exp":             now.Add(i.ttl).Unix(),
		"iat":             now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign socket ticket: %w", err)
	}
	return signed, nil
}

// Parse validates the ticket and returns the bracket it was issued for.
func (i *TicketIssuer) Parse(tokenString string) (int, error) {
	if tokenString == "" {
		return 0, ErrInvalidTicket
	}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidTicket
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidTicket
	}
	if purpose, _ := claims[jwtClaimPurpose].(string); purpose != ticketPurpose {
		return 0, ErrInvalidTicket
	}
	return bracketIDFromClaims(claims)
}

func bracketIDFromClaims(claims jwt.MapClaims) (int, error) {
	raw, ok := claims[jwtClaimBracketID]
	if !ok {
		return 0, fmt.Errorf("%w: missing '%s' claim", ErrInvalidTicket, jwtClaimBracketID)
	}
	// JSON numbers decode as float64
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) || f <= 0 {
		return 0, fmt.Errorf("%w: bad '%s' claim %v", ErrInvalidTicket, jwtClaimBracketID, raw)
	}
	return int(f), nil
}
