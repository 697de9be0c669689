package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenClaims carries the workspace context issued after a successful
// login, workspace switch or invitation accept.
type TokenClaims struct {
	UserID           uint64 `json:"uid"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	OrganizationID   uint64 `json:"org_id,omitempty"`
	OrganizationRole string `json:"org_role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue returns a signed token carrying the user's identity and, when
// a workspace is active, its id and the user's role in it.
func (s *TokenService) Issue(user *models.User, organizationID uint64, organizationRole models.OrganizationRole) (string, error) {
	now := time.Now().UTC()
	claims := TokenClaims{
		UserID:           user.ID,
		Email:            user.Email,
		Name:             user.Name,
		OrganizationID:   organizationID,
		OrganizationRole: string(organizationRole),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a bearer token and returns its claims.
func (s *TokenService) Parse(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
