// Package oauth implements the provider side of the mail-account linking
// flow: per-provider endpoint descriptors, the authorization-code client,
// and the CSRF state store.
package oauth

import (
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/config"
)

// Provider identifies a configured OAuth2 provider. The set is closed;
// adding a provider means adding a constant, a descriptor constructor and
// an email-extraction case, all checked at compile time.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// ParseProvider maps a path parameter to a known Provider.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderGoogle:
		return ProviderGoogle, true
	case ProviderMicrosoft:
		return ProviderMicrosoft, true
	default:
		return "", false
	}
}

func (p Provider) String() string {
	return string(p)
}

// Descriptor holds the static endpoint and credential configuration for
// one provider. Immutable after construction.
type Descriptor struct {
	Provider     Provider
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// ExtraAuthParams are provider-specific additions to the
	// authorization URL (e.g. access_type=offline for Google).
	ExtraAuthParams map[string]string

	// ScopeInTokenRequest repeats the scope list in the token exchange
	// request body. Microsoft requires it, Google rejects nothing either
	// way but does not need it.
	ScopeInTokenRequest bool
}

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

	microsoftAuthURL     = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	microsoftTokenURL    = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	microsoftUserInfoURL = "https://graph.microsoft.com/v1.0/me"
)

// GoogleDescriptor builds the Google descriptor from configuration.
func GoogleDescriptor(cfg config.OAuthClientConfig) Descriptor {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}

	return Descriptor{
		Provider:     ProviderGoogle,
		AuthURL:      googleAuthURL,
		TokenURL:     googleTokenURL,
		UserInfoURL:  googleUserInfoURL,
		Scopes:       scopes,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		ExtraAuthParams: map[string]string{
			"access_type": "offline", // Get refresh token
			"prompt":      "consent", // Force consent screen for refresh token
		},
	}
}

// MicrosoftDescriptor builds the Microsoft descriptor from configuration.
func MicrosoftDescriptor(cfg config.OAuthClientConfig) Descriptor {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "offline_access", "User.Read"}
	}

	return Descriptor{
		Provider:     ProviderMicrosoft,
		AuthURL:      microsoftAuthURL,
		TokenURL:     microsoftTokenURL,
		UserInfoURL:  microsoftUserInfoURL,
		Scopes:       scopes,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		ExtraAuthParams: map[string]string{
			"prompt": "consent",
		},
		ScopeInTokenRequest: true,
	}
}
