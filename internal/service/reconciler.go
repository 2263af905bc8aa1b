// Package service implements the token reconciliation rules that sit
// between the OAuth callback handler and the repository.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/omoinjm/njmtech-mail-oauth-api/internal/repository"
	"github.com/omoinjm/njmtech-mail-oauth-api/internal/types"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/logger"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/oauth"
)

var (
	// ErrProviderConflict means the email is already linked through a
	// different provider. The linking attempt is rejected unchanged.
	ErrProviderConflict = errors.New("email linked to a different provider")

	// ErrDataCorruption means an account row exists without its
	// credential row. That pairing is created atomically, so this state
	// indicates external interference and is never auto-repaired.
	ErrDataCorruption = errors.New("account exists without credential")
)

// LinkResult describes the account state after a reconciliation.
type LinkResult struct {
	Account    *types.Account
	Credential *types.Credential

	// Created is true when this call linked the account for the first
	// time, false when it refreshed an existing link.
	Created bool
}

// TokenReconciler folds a fresh provider token into the account store:
// first sight of an email creates the account and credential together,
// every later sight updates the credential in place.
type TokenReconciler struct {
	store repository.Store
}

func NewTokenReconciler(store repository.Store) *TokenReconciler {
	return &TokenReconciler{store: store}
}

// Reconcile applies a token payload for email obtained via provider.
//
// A lost create race (unique violation on email) is retried once as an
// update; by then the winning request has committed both rows.
func (r *TokenReconciler) Reconcile(ctx context.Context, email string, provider oauth.Provider, tok *oauth.Token) (*LinkResult, error) {
	in := credentialInput(tok)

	result, err := r.reconcileOnce(ctx, email, provider, in)
	if errors.Is(err, repository.ErrEmailTaken) {
		logger.Warn().
			Str("email", email).
			Str("provider", provider.String()).
			Msg("lost account create race, retrying as update")
		result, err = r.reconcileOnce(ctx, email, provider, in)
	}
	return result, err
}

func (r *TokenReconciler) reconcileOnce(ctx context.Context, email string, provider oauth.Provider, in types.CredentialInput) (*LinkResult, error) {
	var result *LinkResult

	err := r.store.InTx(ctx, func(tx repository.Store) error {
		account, err := tx.AccountByEmail(ctx, email)
		if errors.Is(err, repository.ErrAccountNotFound) {
			created, cred, err := tx.CreateAccountWithCredential(ctx, email, provider.String(), in)
			if err != nil {
				return err
			}
			result = &LinkResult{Account: created, Credential: cred, Created: true}
			return nil
		}
		if err != nil {
			return err
		}

		if account.Provider != provider.String() {
			return ErrProviderConflict
		}

		if _, err := tx.CredentialByAccount(ctx, account.ID); err != nil {
			if errors.Is(err, repository.ErrCredentialNotFound) {
				logger.Error().
					Int64("account_id", account.ID).
					Str("email", email).
					Msg("account row has no credential row")
				return ErrDataCorruption
			}
			return err
		}

		cred, err := tx.UpdateCredential(ctx, account.ID, in)
		if err != nil {
			return err
		}
		result = &LinkResult{Account: account, Credential: cred}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func credentialInput(tok *oauth.Token) types.CredentialInput {
	in := types.CredentialInput{
		AccessToken: tok.AccessToken,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	if tok.RefreshToken != "" {
		refresh := tok.RefreshToken
		in.RefreshToken = &refresh
	}
	return in
}
