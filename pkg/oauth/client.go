package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/telemetry"
)

// providerTimeout bounds each call to the provider. Authorization codes
// are single-use, so a timed-out exchange fails cleanly and is never
// retried.
const providerTimeout = 10 * time.Second

// Token is the payload returned by a provider's token endpoint.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// ExchangeError reports a failed token exchange. The body is kept for
// logging only and never reaches API callers.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// UserInfoError reports a failed userinfo fetch.
type UserInfoError struct {
	Status int
	Body   string
}

func (e *UserInfoError) Error() string {
	return fmt.Sprintf("user info request failed with status %d: %s", e.Status, e.Body)
}

// Client performs the three OAuth2 operations for one provider. It holds
// only the static descriptor and an HTTP client; construct one per
// provider at startup and share freely.
type Client struct {
	desc       Descriptor
	httpClient *http.Client
}

func NewClient(desc Descriptor) *Client {
	return &Client{
		desc: desc,
		httpClient: telemetry.WrapHTTPClient(&http.Client{
			Timeout: providerTimeout,
		}),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() Provider {
	return c.desc.Provider
}

// LoginURL builds the provider authorization URL for the given CSRF
// state. Pure function, no I/O.
func (c *Client) LoginURL(state string) string {
	params := url.Values{
		"client_id":     {c.desc.ClientID},
		"redirect_uri":  {c.desc.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(c.desc.Scopes, " ")},
		"state":         {state},
	}
	for k, v := range c.desc.ExtraAuthParams {
		params.Set(k, v)
	}

	return c.desc.AuthURL + "?" + params.Encode()
}

// Exchange trades an authorization code for tokens. Any non-2xx response
// or malformed body yields an *ExchangeError; the code is single-use so
// there is no retry.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx, span := c.startSpan(ctx, "oauth.exchange")
	defer span.End()

	data := url.Values{
		"code":          {code},
		"client_id":     {c.desc.ClientID},
		"client_secret": {c.desc.ClientSecret},
		"redirect_uri":  {c.desc.RedirectURI},
		"grant_type":    {"authorization_code"},
	}
	if c.desc.ScopeInTokenRequest {
		data.Set("scope", strings.Join(c.desc.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &ExchangeError{Status: status, Body: err.Error()}
	}
	if status < 200 || status > 299 {
		return nil, &ExchangeError{Status: status, Body: string(body)}
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &ExchangeError{Status: status, Body: fmt.Sprintf("malformed token response: %v", err)}
	}

	if tok.AccessToken == "" || tok.ExpiresIn <= 0 {
		return nil, &ExchangeError{Status: status, Body: "token response missing access_token or expires_in"}
	}

	return &tok, nil
}

// UserInfo fetches the raw userinfo document with a bearer token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	ctx, span := c.startSpan(ctx, "oauth.userinfo")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.desc.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	status, body, err := c.do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &UserInfoError{Status: status, Body: err.Error()}
	}
	if status < 200 || status > 299 {
		return nil, &UserInfoError{Status: status, Body: string(body)}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &UserInfoError{Status: status, Body: fmt.Sprintf("malformed userinfo response: %v", err)}
	}

	return raw, nil
}

// Email extracts the account email from a raw userinfo document.
// Google exposes it as "email"; Microsoft Graph as "mail" with
// "userPrincipalName" as the fallback. Returns "" when absent.
func (c *Client) Email(raw map[string]any) string {
	switch c.desc.Provider {
	case ProviderGoogle:
		return stringField(raw, "email")
	case ProviderMicrosoft:
		if mail := stringField(raw, "mail"); mail != "" {
			return mail
		}
		return stringField(raw, "userPrincipalName")
	default:
		return ""
	}
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

func (c *Client) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("oauth-client").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("oauth.provider", c.desc.Provider.String())),
	)
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}
