package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const devSecret = "foodgram-dev-secret-change-in-production"

var (
	settingsMu    sync.RWMutex
	jwtSecret     []byte
	tokenDuration = 24 * time.Hour
)

// Claims represents the JWT claims
type Claims struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

// Configure sets the signing secret and token lifetime. An empty secret
// falls back to JWT_SECRET and then to a development default.
func Configure(secret string, ttl time.Duration) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	jwtSecret = []byte(secret)
	if ttl > 0 {
		tokenDuration = ttl
	}
}

// getJWTSecret returns the configured secret, JWT_SECRET, or a default for development
func getJWTSecret() []byte {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if len(jwtSecret) > 0 {
		return jwtSecret
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte(devSecret)
}

func getTokenDuration() time.Duration {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return tokenDuration
}

// GenerateToken creates a new JWT token for a user
func GenerateToken(userID uint, email string, systemRole string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SystemRole: systemRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenDuration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "foodgram",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTSecret())
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return getJWTSecret(), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
