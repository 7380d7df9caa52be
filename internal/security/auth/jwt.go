package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the portal session token payload. PortalRoles carries the app
// role claims granted by Entra ID at login.
type Claims struct {
	UserID            string   `json:"user_id"`
	UserPrincipalName string   `json:"upn"`
	DisplayName       string   `json:"name"`
	PortalRoles       []string `json:"portal_roles"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates portal session tokens
type TokenManager struct {
	secret string
	issuer string
}

// NewTokenManager creates a token manager
func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "entrasecure"
	}
	return &TokenManager{secret: secret, issuer: issuer}
}

// GenerateToken signs a session token for an authenticated principal
func (tm *TokenManager) GenerateToken(userID, upn, displayName string, portalRoles []string, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id required")
	}
	if portalRoles == nil {
		portalRoles = []string{}
	}
	now := time.Now()
	claims := Claims{
		UserID:            userID,
		UserPrincipalName: upn,
		DisplayName:       displayName,
		PortalRoles:       portalRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secret))
}

// ValidateToken parses and verifies a session token
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ExtractToken pulls the bearer token out of an Authorization header
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
