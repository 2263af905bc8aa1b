// Package handler wires the OAuth linking flow to HTTP.
package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/omoinjm/njmtech-mail-oauth-api/internal/service"
	"github.com/omoinjm/njmtech-mail-oauth-api/internal/types"
	apperrors "github.com/omoinjm/njmtech-mail-oauth-api/pkg/errors"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/events"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/logger"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/metrics"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/middleware"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/oauth"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/response"
)

const (
	sessionCookie = "mo_session"
	sessionTTL    = 24 * time.Hour

	eventSource = "mail-oauth-api"
)

// AuthHandler serves the login and callback endpoints for all configured
// providers.
type AuthHandler struct {
	registry   *oauth.Registry
	states     oauth.StateStore
	reconciler *service.TokenReconciler
	publisher  events.Publisher
}

func NewAuthHandler(registry *oauth.Registry, states oauth.StateStore, reconciler *service.TokenReconciler, publisher events.Publisher) *AuthHandler {
	return &AuthHandler{
		registry:   registry,
		states:     states,
		reconciler: reconciler,
		publisher:  publisher,
	}
}

// RegisterRoutes mounts the auth endpoints on the given router.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/providers", h.Providers)
	router.Get("/:provider/login", h.Login)
	router.Get("/:provider/callback", h.Callback)
}

// Providers lists the provider names available for linking.
func (h *AuthHandler) Providers(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"providers": h.registry.List(),
	})
}

// Login issues a CSRF state bound to the browser session and redirects
// to the provider's consent screen.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	client, err := h.client(c)
	if err != nil {
		return err
	}

	sessionID := c.Cookies(sessionCookie)
	if sessionID == "" {
		sessionID = uuid.New().String()
		c.Cookie(&fiber.Cookie{
			Name:     sessionCookie,
			Value:    sessionID,
			Expires:  time.Now().Add(sessionTTL),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	state, err := h.states.Issue(c.UserContext(), sessionID)
	if err != nil {
		return apperrors.ErrInternal.WithError(err)
	}

	metrics.OAuthLogin(client.Name().String())

	return c.Redirect(client.LoginURL(state), fiber.StatusTemporaryRedirect)
}

// Callback completes the flow: validates state, exchanges the code,
// fetches the identity and reconciles the tokens into storage.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	client, err := h.client(c)
	if err != nil {
		return err
	}
	provider := client.Name().String()

	if providerErr := c.Query("error"); providerErr != "" {
		metrics.OAuthCallback(provider, "denied")
		return apperrors.ErrValidation.WithDetails("provider returned error: " + providerErr)
	}

	code := c.Query("code")
	if code == "" {
		metrics.OAuthCallback(provider, "invalid")
		return apperrors.ErrValidation.WithDetails("missing code parameter")
	}

	ctx := c.UserContext()

	// State validation happens before any provider call. A missing
	// session cookie fails the same way as a forged state.
	sessionID := c.Cookies(sessionCookie)
	if err := h.states.Validate(ctx, sessionID, c.Query("state")); err != nil {
		metrics.OAuthCallback(provider, "invalid_state")
		if errors.Is(err, oauth.ErrStateInvalid) {
			return apperrors.ErrInvalidState
		}
		return apperrors.ErrInternal.WithError(err)
	}

	tok, err := client.Exchange(ctx, code)
	if err != nil {
		metrics.OAuthCallback(provider, "exchange_failed")
		var exchErr *oauth.ExchangeError
		if errors.As(err, &exchErr) {
			logger.Warn().
				Str("provider", provider).
				Int("status", exchErr.Status).
				Msg("token exchange rejected")
			return apperrors.ErrExchangeFailed.WithError(err)
		}
		return apperrors.ErrInternal.WithError(err)
	}

	raw, err := client.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		metrics.OAuthCallback(provider, "userinfo_failed")
		var uiErr *oauth.UserInfoError
		if errors.As(err, &uiErr) {
			return apperrors.ErrUserInfoFailed.WithError(err)
		}
		return apperrors.ErrInternal.WithError(err)
	}

	email := client.Email(raw)
	if email == "" {
		metrics.OAuthCallback(provider, "missing_email")
		return apperrors.ErrMissingEmail
	}

	result, err := h.reconciler.Reconcile(ctx, email, client.Name(), tok)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProviderConflict):
			metrics.OAuthCallback(provider, "conflict")
			return apperrors.ErrProviderConflict.WithDetails(
				"email " + email + " is linked through another provider")
		case errors.Is(err, service.ErrDataCorruption):
			metrics.OAuthCallback(provider, "corruption")
			return apperrors.ErrDataCorruption.WithError(err)
		default:
			metrics.OAuthCallback(provider, "error")
			return apperrors.ErrInternal.WithError(err)
		}
	}

	metrics.OAuthCallback(provider, "success")
	h.publishResult(c, result)

	return response.Success(c, types.AuthResponse{
		User: types.UserInfo{Email: result.Account.Email},
		Token: types.TokenData{
			AccessToken:  result.Credential.AccessToken,
			RefreshToken: result.Credential.RefreshToken,
			ExpiresAt:    result.Credential.ExpiresAt,
		},
		Provider: result.Account.Provider,
		Linked:   result.Created,
	})
}

// publishResult emits the domain event for a completed link. Best-effort:
// a broker failure is logged and the caller still gets its tokens.
func (h *AuthHandler) publishResult(c *fiber.Ctx, result *service.LinkResult) {
	var topic string
	var event *events.Event

	if result.Created {
		topic = events.TopicAccountLinked
		event = events.NewEvent("account.linked.v1", eventSource, events.AccountLinkedData{
			AccountID: result.Account.ID,
			Email:     result.Account.Email,
			Provider:  result.Account.Provider,
		})
	} else {
		topic = events.TopicCredentialRefreshed
		event = events.NewEvent("credential.refreshed.v1", eventSource, events.CredentialRefreshedData{
			AccountID: result.Account.ID,
			Provider:  result.Account.Provider,
			ExpiresAt: result.Credential.ExpiresAt,
		})
	}
	event.WithCorrelationID(middleware.GetRequestID(c))

	if err := h.publisher.Publish(c.UserContext(), topic, event); err != nil {
		metrics.EventPublished(topic, "error")
		logger.Error().Err(err).
			Str("topic", topic).
			Int64("account_id", result.Account.ID).
			Msg("failed to publish event")
		return
	}
	metrics.EventPublished(topic, "ok")
}

func (h *AuthHandler) client(c *fiber.Ctx) (*oauth.Client, error) {
	name, ok := oauth.ParseProvider(c.Params("provider"))
	if !ok {
		return nil, apperrors.ErrProviderNotFound.WithDetails(
			"unknown provider: " + c.Params("provider"))
	}

	client, ok := h.registry.Get(name)
	if !ok {
		return nil, apperrors.ErrProviderNotFound.WithDetails(
			"provider not configured: " + name.String())
	}

	return client, nil
}
