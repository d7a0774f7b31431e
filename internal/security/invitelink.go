package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const inviteLinkIssuer = "orgsession"

// InviteClaims binds an acceptance link to one invitation and invitee email.
type InviteClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// LinkSigner issues and verifies HS256 tokens embedded in invitation acceptance links.
type LinkSigner struct {
	secret []byte
}

// NewLinkSigner returns a LinkSigner keyed with secret.
func NewLinkSigner(secret string) (*LinkSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("security: link secret must not be empty")
	}
	return &LinkSigner{secret: []byte(secret)}, nil
}

// Issue signs a token for invitationID and email valid until expiresAt.
func (s *LinkSigner) Issue(invitationID, email string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   invitationID,
			Issuer:    inviteLinkIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses token and checks it was issued for invitationID. Returns the invitee email.
func (s *LinkSigner) Verify(token, invitationID string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &InviteClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(inviteLinkIssuer),
		jwt.WithSubject(invitationID),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*InviteClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}
