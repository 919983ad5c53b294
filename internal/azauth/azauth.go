package azauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rs/zerolog"

	"azure-cost-alerts/internal/fetcher"
)

// ManagementScope is the token scope for Azure Resource Manager.
const ManagementScope = "https://management.azure.com/.default"

// TokenProvider hands out a bearer token for the management API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// NewCredential builds the configured Azure credential: "cli" (default) or "default".
func NewCredential(kind string) (azcore.TokenCredential, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "cli":
		cred, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: azure cli credential: %v", fetcher.ErrUpstreamAuth, err)
		}
		return cred, nil
	case "default":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: default azure credential: %v", fetcher.ErrUpstreamAuth, err)
		}
		return cred, nil
	default:
		return nil, fmt.Errorf("unsupported azure credential %q", kind)
	}
}

// Provider acquires tokens from an azcore credential.
type Provider struct {
	cred   azcore.TokenCredential
	scope  string
	logger zerolog.Logger
}

// NewProvider wraps cred; an empty scope means ManagementScope.
func NewProvider(cred azcore.TokenCredential, scope string, logger zerolog.Logger) *Provider {
	if scope == "" {
		scope = ManagementScope
	}
	return &Provider{
		cred:   cred,
		scope:  scope,
		logger: logger.With().Str("component", "azauth").Logger(),
	}
}

// Token requests a fresh access token.
func (p *Provider) Token(ctx context.Context) (string, error) {
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.scope}})
	if err != nil {
		return "", fmt.Errorf("%w: acquire token: %v", fetcher.ErrUpstreamAuth, err)
	}
	if tok.Token == "" {
		return "", fmt.Errorf("%w: empty access token", fetcher.ErrUpstreamAuth)
	}
	p.logger.Info().Time("expires_on", tok.ExpiresOn).Msg("access token acquired")
	return tok.Token, nil
}

// Static returns a fixed token. Providers without bearer auth use an empty one.
type Static string

// Token implements TokenProvider.
func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

var (
	_ TokenProvider = (*Provider)(nil)
	_ TokenProvider = Static("")
)
