package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/config"
)

func googleTestConfig() config.OAuthClientConfig {
	return config.OAuthClientConfig{
		ClientID:     "google-client-id",
		ClientSecret: "google-secret",
		RedirectURI:  "https://api.example.com/auth/google/callback",
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func microsoftTestConfig() config.OAuthClientConfig {
	return config.OAuthClientConfig{
		ClientID:     "ms-client-id",
		ClientSecret: "ms-secret",
		RedirectURI:  "https://api.example.com/auth/microsoft/callback",
		Scopes:       []string{"openid", "offline_access", "User.Read"},
	}
}

func TestClient_LoginURL_Google(t *testing.T) {
	client := NewClient(GoogleDescriptor(googleTestConfig()))

	raw := client.LoginURL("state123")
	if !strings.HasPrefix(raw, "https://accounts.google.com/o/oauth2/v2/auth?") {
		t.Fatalf("LoginURL() = %v, want google authorization endpoint", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()

	checks := map[string]string{
		"client_id":     "google-client-id",
		"redirect_uri":  "https://api.example.com/auth/google/callback",
		"response_type": "code",
		"scope":         "openid email profile",
		"state":         "state123",
		"access_type":   "offline",
		"prompt":        "consent",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("LoginURL() %s = %q, want %q", key, got, want)
		}
	}
}

func TestClient_LoginURL_Microsoft(t *testing.T) {
	client := NewClient(MicrosoftDescriptor(microsoftTestConfig()))

	raw := client.LoginURL("state456")
	if !strings.HasPrefix(raw, "https://login.microsoftonline.com/common/oauth2/v2.0/authorize?") {
		t.Fatalf("LoginURL() = %v, want microsoft authorization endpoint", raw)
	}

	u, _ := url.Parse(raw)
	q := u.Query()

	if got := q.Get("scope"); got != "openid offline_access User.Read" {
		t.Errorf("LoginURL() scope = %q", got)
	}
	if got := q.Get("prompt"); got != "consent" {
		t.Errorf("LoginURL() prompt = %q, want consent", got)
	}
	if q.Has("access_type") {
		t.Error("microsoft login URL should not carry access_type")
	}
}

func testDescriptor(p Provider, tokenURL, userInfoURL string, repeatScope bool) Descriptor {
	return Descriptor{
		Provider:            p,
		AuthURL:             "https://auth.example.com/authorize",
		TokenURL:            tokenURL,
		UserInfoURL:         userInfoURL,
		Scopes:              []string{"openid", "email"},
		ClientID:            "id",
		ClientSecret:        "secret",
		RedirectURI:         "https://api.example.com/cb",
		ScopeInTokenRequest: repeatScope,
	}
}

func TestClient_Exchange(t *testing.T) {
	var gotForm url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"t1","refresh_token":"r1","expires_in":3600}`))
	}))
	defer ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, ts.URL, "", false))
	tok, err := client.Exchange(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if tok.AccessToken != "t1" {
		t.Errorf("AccessToken = %v, want t1", tok.AccessToken)
	}
	if tok.RefreshToken != "r1" {
		t.Errorf("RefreshToken = %v, want r1", tok.RefreshToken)
	}
	if tok.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %v, want 3600", tok.ExpiresIn)
	}

	if gotForm.Get("code") != "abc" {
		t.Errorf("form code = %v, want abc", gotForm.Get("code"))
	}
	if gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("form grant_type = %v", gotForm.Get("grant_type"))
	}
	if gotForm.Has("scope") {
		t.Error("google exchange should not repeat scope")
	}
}

func TestClient_Exchange_MicrosoftRepeatsScope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("scope"); got != "openid email" {
			t.Errorf("form scope = %q, want %q", got, "openid email")
		}
		w.Write([]byte(`{"access_token":"t1","expires_in":3600}`))
	}))
	defer ts.Close()

	client := NewClient(testDescriptor(ProviderMicrosoft, ts.URL, "", true))
	if _, err := client.Exchange(context.Background(), "abc"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
}

func TestClient_Exchange_ProviderRejects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, ts.URL, "", false))
	_, err := client.Exchange(context.Background(), "used-code")

	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("Exchange() error = %v, want *ExchangeError", err)
	}
	if exchErr.Status != http.StatusBadRequest {
		t.Errorf("ExchangeError.Status = %d, want 400", exchErr.Status)
	}
	if !strings.Contains(exchErr.Body, "invalid_grant") {
		t.Errorf("ExchangeError.Body = %q, want provider body", exchErr.Body)
	}
}

func TestClient_Exchange_IncompletePayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing access token", `{"expires_in":3600}`},
		{"missing expiry", `{"access_token":"t1"}`},
		{"malformed json", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client := NewClient(testDescriptor(ProviderGoogle, ts.URL, "", false))
			_, err := client.Exchange(context.Background(), "abc")

			var exchErr *ExchangeError
			if !errors.As(err, &exchErr) {
				t.Fatalf("Exchange() error = %v, want *ExchangeError", err)
			}
		})
	}
}

func TestClient_Exchange_TransportFailure(t *testing.T) {
	// A closed server models timeouts and connection failures: no HTTP
	// status ever arrives, but callers still get an *ExchangeError.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, ts.URL, "", false))
	_, err := client.Exchange(context.Background(), "abc")

	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("Exchange() error = %v, want *ExchangeError", err)
	}
	if exchErr.Status != 0 {
		t.Errorf("ExchangeError.Status = %d, want 0 for transport failure", exchErr.Status)
	}
}

func TestClient_UserInfo_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, "", ts.URL, false))
	_, err := client.UserInfo(context.Background(), "tok")

	var uiErr *UserInfoError
	if !errors.As(err, &uiErr) {
		t.Fatalf("UserInfo() error = %v, want *UserInfoError", err)
	}
	if uiErr.Status != 0 {
		t.Errorf("UserInfoError.Status = %d, want 0 for transport failure", uiErr.Status)
	}
}

func TestClient_UserInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", got)
		}
		w.Write([]byte(`{"email":"a@b.com","name":"A B"}`))
	}))
	defer ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, "", ts.URL, false))
	raw, err := client.UserInfo(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("UserInfo() error = %v", err)
	}

	if raw["email"] != "a@b.com" {
		t.Errorf("raw email = %v, want a@b.com", raw["email"])
	}
}

func TestClient_UserInfo_Failure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer ts.Close()

	client := NewClient(testDescriptor(ProviderGoogle, "", ts.URL, false))
	_, err := client.UserInfo(context.Background(), "expired")

	var uiErr *UserInfoError
	if !errors.As(err, &uiErr) {
		t.Fatalf("UserInfo() error = %v, want *UserInfoError", err)
	}
	if uiErr.Status != http.StatusUnauthorized {
		t.Errorf("UserInfoError.Status = %d, want 401", uiErr.Status)
	}
}

func TestClient_Email(t *testing.T) {
	google := NewClient(GoogleDescriptor(googleTestConfig()))
	microsoft := NewClient(MicrosoftDescriptor(microsoftTestConfig()))

	tests := []struct {
		name   string
		client *Client
		raw    map[string]any
		want   string
	}{
		{"google email field", google, map[string]any{"email": "a@b.com"}, "a@b.com"},
		{"google missing", google, map[string]any{"name": "A"}, ""},
		{"microsoft mail field", microsoft, map[string]any{"mail": "a@b.com", "userPrincipalName": "x@y.com"}, "a@b.com"},
		{"microsoft upn fallback", microsoft, map[string]any{"mail": nil, "userPrincipalName": "x@y.com"}, "x@y.com"},
		{"microsoft missing", microsoft, map[string]any{}, ""},
		{"non-string field", google, map[string]any{"email": 42}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.Email(tt.raw); got != tt.want {
				t.Errorf("Email() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseProvider(t *testing.T) {
	if p, ok := ParseProvider("google"); !ok || p != ProviderGoogle {
		t.Errorf("ParseProvider(google) = %v, %v", p, ok)
	}
	if p, ok := ParseProvider("microsoft"); !ok || p != ProviderMicrosoft {
		t.Errorf("ParseProvider(microsoft) = %v, %v", p, ok)
	}
	if _, ok := ParseProvider("github"); ok {
		t.Error("ParseProvider(github) should not be recognized")
	}
}
