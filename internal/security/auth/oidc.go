package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/entrasecure/entrasecure/pkg/cache"
)

// AuthError is a token acquisition failure: the principal has no live
// session or the authority refused the exchange. Never retried by callers.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// LoginResult is the principal identity established by a completed
// authorization-code exchange
type LoginResult struct {
	UserID            string
	UserPrincipalName string
	DisplayName       string
	PortalRoles       []string
}

// sessionTTL bounds how long a cached token source survives without a new
// login; refresh tokens inside the source keep access tokens fresh within it
const sessionTTL = 12 * time.Hour

// Provider drives the OpenID Connect authorization-code flow against the
// Entra ID authority and hands out Microsoft Graph access tokens for
// authenticated principals.
type Provider struct {
	oauth   *oauth2.Config
	sources *cache.Cache[oauth2.TokenSource]
	logger  *slog.Logger
}

// NewProvider builds the confidential-client configuration for one tenant
func NewProvider(tenantID, clientID, clientSecret, redirectURI string, scopes []string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	authority := "https://login.microsoftonline.com/" + tenantID
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       append([]string{"openid", "profile", "offline_access"}, scopes...),
			Endpoint: oauth2.Endpoint{
				AuthURL:  authority + "/oauth2/v2.0/authorize",
				TokenURL: authority + "/oauth2/v2.0/token",
			},
		},
		sources: cache.New[oauth2.TokenSource](),
		logger:  logger,
	}
}

// LoginURL returns the authorization URL to redirect the browser to
func (p *Provider) LoginURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange completes the authorization-code flow, establishes the principal
// identity from the ID token and caches a refreshing token source for
// later Graph calls.
func (p *Provider) Exchange(ctx context.Context, code string) (*LoginResult, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Reason: "authorization code exchange denied", Err: err}
	}

	rawID, _ := token.Extra("id_token").(string)
	if rawID == "" {
		return nil, &AuthError{Reason: "authority response missing id_token"}
	}
	result, err := parseIDToken(rawID)
	if err != nil {
		return nil, err
	}

	p.sources.Set(result.UserID, p.oauth.TokenSource(context.Background(), token), sessionTTL)
	p.logger.Info("principal authenticated",
		slog.String("user_id", result.UserID),
		slog.String("upn", result.UserPrincipalName),
		slog.Int("portal_roles", len(result.PortalRoles)),
	)
	return result, nil
}

// AccessToken returns a valid Graph access token for the principal,
// refreshing through the cached token source when needed
func (p *Provider) AccessToken(ctx context.Context, principalID string) (string, error) {
	src, ok := p.sources.Get(principalID)
	if !ok {
		return "", &AuthError{Reason: "no active session for principal"}
	}
	token, err := src.Token()
	if err != nil {
		return "", &AuthError{Reason: "token refresh denied", Err: err}
	}
	return token.AccessToken, nil
}

// Logout drops the principal's cached token source
func (p *Provider) Logout(principalID string) {
	p.sources.Delete(principalID)
}

// idClaims is the subset of ID token claims the portal consumes. The token
// arrives directly from the authority's token endpoint over TLS, so claims
// are read without a local signature check (the transport is the trust
// anchor, as in the confidential-client model).
type idClaims struct {
	ObjectID          string   `json:"oid"`
	PreferredUsername string   `json:"preferred_username"`
	Name              string   `json:"name"`
	Roles             []string `json:"roles"`
	jwt.RegisteredClaims
}

func parseIDToken(raw string) (*LoginResult, error) {
	var claims idClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, &AuthError{Reason: "malformed id_token", Err: err}
	}
	if claims.ObjectID == "" {
		return nil, &AuthError{Reason: "id_token missing oid claim"}
	}
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return &LoginResult{
		UserID:            claims.ObjectID,
		UserPrincipalName: claims.PreferredUsername,
		DisplayName:       claims.Name,
		PortalRoles:       roles,
	}, nil
}
