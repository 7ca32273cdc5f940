// Package token issues and verifies the HS256 access/refresh token pairs
// that gate every interview endpoint and the realtime channel.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongType    = errors.New("wrong token type")
)

// Token lifetimes.
const (
	AccessTTL  = 4 * time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims are the verified contents of a token.
type Claims struct {
	UserID string
	Email  string
	Type   string
}

// Pair bundles an access token with its refresh token.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Manager signs and verifies tokens with a shared secret.
type Manager struct {
	secret []byte
}

// NewManager rejects an empty secret up front; running without one would
// make every signature forgeable.
func NewManager(secret string) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	return &Manager{secret: []byte(secret)}, nil
}

// GeneratePair issues an access/refresh token pair for a user.
func (m *Manager) GeneratePair(userID, email string) (Pair, error) {
	access, err := m.sign(userID, email, typeAccess, AccessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(userID, email, typeRefresh, RefreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *Manager) sign(userID, email, tokenType string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"type":    tokenType,
		"exp":     jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature and expiry of an access token.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// Refresh validates a refresh token and issues a fresh pair.
func (m *Manager) Refresh(refreshToken string) (Pair, error) {
	claims, err := m.parse(refreshToken)
	if err != nil {
		return Pair{}, err
	}
	if claims.Type != typeRefresh {
		return Pair{}, ErrWrongType
	}
	return m.GeneratePair(claims.UserID, claims.Email)
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, _ := mapClaims["user_id"].(string)
	email, _ := mapClaims["email"].(string)
	tokenType, _ := mapClaims["type"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{UserID: userID, Email: email, Type: tokenType}, nil
}
