package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/support-relay/relay/internal/domain"
)

// TokenManager handles issuing and validating moderator tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Claims describes the JWT payload. The registered ID doubles as the session id.
type Claims struct {
	ModeratorID string `json:"modId"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

// Moderator returns the identity carried by the claims.
func (c *Claims) Moderator() domain.Moderator {
	return domain.Moderator{ID: c.ModeratorID, DisplayName: c.DisplayName}
}

// GenerateToken builds and signs a token for the moderator.
func (tm *TokenManager) GenerateToken(mod domain.Moderator) (string, *Claims, error) {
	issuedAt := tm.now()
	claims := &Claims{
		ModeratorID: mod.ID,
		DisplayName: mod.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   mod.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ModeratorID == "" {
		return nil, errors.New("token carries no moderator id")
	}
	return claims, nil
}
