package auth

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AppTokenProvider acquires app-only Graph tokens via the client
// credentials grant. The background refresh worker uses it so overview
// snapshots can be rebuilt without a signed-in administrator.
type AppTokenProvider struct {
	logger *slog.Logger

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewAppTokenProvider creates an app-only token provider for the tenant
func NewAppTokenProvider(tenantID, clientID, clientSecret string, logger *slog.Logger) *AppTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/token",
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return &AppTokenProvider{
		logger: logger,
		source: cfg.TokenSource(context.Background()),
	}
}

// AccessToken returns a valid app-only Graph token, refreshing as needed.
// The principal id is ignored: the token belongs to the application itself.
func (p *AppTokenProvider) AccessToken(ctx context.Context, principalID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.source.Token()
	if err != nil {
		p.logger.Warn("app token acquisition failed", slog.String("error", err.Error()))
		return "", &AuthError{Reason: "app token acquisition failed", Err: err}
	}
	return token.AccessToken, nil
}
