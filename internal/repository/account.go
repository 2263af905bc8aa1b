// Package repository provides Postgres-backed persistence for mail
// accounts and their OAuth credentials. Token columns are encrypted with
// AES-256-GCM before they reach the database.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omoinjm/njmtech-mail-oauth-api/internal/types"
	"github.com/omoinjm/njmtech-mail-oauth-api/pkg/crypto"
)

var (
	// ErrAccountNotFound means no account exists for the given email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCredentialNotFound means an account exists but has no stored
	// credential row.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrEmailTaken surfaces the unique constraint on mail_accounts.email.
	// A concurrent create won the race; retry as an update.
	ErrEmailTaken = errors.New("email already linked")
)

const uniqueViolationCode = "23505"

// Store is the persistence contract the token reconciler runs against.
// InTx runs fn with a Store whose operations share one transaction.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	AccountByEmail(ctx context.Context, email string) (*types.Account, error)
	CreateAccountWithCredential(ctx context.Context, email, provider string, in types.CredentialInput) (*types.Account, *types.Credential, error)
	CredentialByAccount(ctx context.Context, accountID int64) (*types.Credential, error)
	UpdateCredential(ctx context.Context, accountID int64, in types.CredentialInput) (*types.Credential, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountStore implements Store on Postgres.
type AccountStore struct {
	pool   *pgxpool.Pool
	db     querier
	cipher *crypto.Cipher
}

// NewAccountStore creates a pool-backed account store.
func NewAccountStore(pool *pgxpool.Pool, cipher *crypto.Cipher) *AccountStore {
	return &AccountStore{pool: pool, db: pool, cipher: cipher}
}

// InTx runs fn inside a single transaction. The Store passed to fn
// issues all queries on that transaction; it rolls back when fn errors.
func (s *AccountStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already transactional; nested calls share the outer tx.
		return fn(s)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&AccountStore{db: tx, cipher: s.cipher})
	})
}

const accountColumns = "id, email, provider, is_active, created_at, updated_at"

func (s *AccountStore) AccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM mail_accounts WHERE email = $1", accountColumns)

	var a types.Account
	err := s.db.QueryRow(ctx, query, email).Scan(
		&a.ID, &a.Email, &a.Provider, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return &a, nil
}

func (s *AccountStore) CreateAccountWithCredential(ctx context.Context, email, provider string, in types.CredentialInput) (*types.Account, *types.Credential, error) {
	sealed, err := s.seal(in)
	if err != nil {
		return nil, nil, err
	}

	var a types.Account
	err = s.db.QueryRow(ctx,
		`INSERT INTO mail_accounts (email, provider)
		 VALUES ($1, $2)
		 RETURNING `+accountColumns,
		email, provider,
	).Scan(&a.ID, &a.Email, &a.Provider, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("failed to create account: %w", err)
	}

	var c types.Credential
	var storedRefresh *string
	err = s.db.QueryRow(ctx,
		`INSERT INTO oauth_credentials (account_id, access_token, refresh_token, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, account_id, access_token, refresh_token, expires_at, created_at, updated_at`,
		a.ID, sealed.access, sealed.refresh, in.ExpiresAt,
	).Scan(&c.ID, &c.AccountID, &c.AccessToken, &storedRefresh, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create credential: %w", err)
	}

	if err := s.open(&c, storedRefresh); err != nil {
		return nil, nil, err
	}

	return &a, &c, nil
}

func (s *AccountStore) CredentialByAccount(ctx context.Context, accountID int64) (*types.Credential, error) {
	var c types.Credential
	var storedRefresh *string
	err := s.db.QueryRow(ctx,
		`SELECT id, account_id, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM oauth_credentials WHERE account_id = $1`,
		accountID,
	).Scan(&c.ID, &c.AccountID, &c.AccessToken, &storedRefresh, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if err := s.open(&c, storedRefresh); err != nil {
		return nil, err
	}

	return &c, nil
}

// UpdateCredential replaces the stored access token and expiry. The
// refresh token is only overwritten when the new payload carries one;
// COALESCE keeps the existing value otherwise.
func (s *AccountStore) UpdateCredential(ctx context.Context, accountID int64, in types.CredentialInput) (*types.Credential, error) {
	sealed, err := s.seal(in)
	if err != nil {
		return nil, err
	}

	var c types.Credential
	var storedRefresh *string
	err = s.db.QueryRow(ctx,
		`UPDATE oauth_credentials
		 SET access_token = $2,
		     refresh_token = COALESCE($3, refresh_token),
		     expires_at = $4,
		     updated_at = now()
		 WHERE account_id = $1
		 RETURNING id, account_id, access_token, refresh_token, expires_at, created_at, updated_at`,
		accountID, sealed.access, sealed.refresh, in.ExpiresAt,
	).Scan(&c.ID, &c.AccountID, &c.AccessToken, &storedRefresh, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	if err := s.open(&c, storedRefresh); err != nil {
		return nil, err
	}

	return &c, nil
}

type sealedTokens struct {
	access  string
	refresh *string
}

func (s *AccountStore) seal(in types.CredentialInput) (sealedTokens, error) {
	access, err := s.cipher.Encrypt(in.AccessToken)
	if err != nil {
		return sealedTokens{}, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var refresh *string
	if in.RefreshToken != nil {
		enc, err := s.cipher.Encrypt(*in.RefreshToken)
		if err != nil {
			return sealedTokens{}, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		refresh = &enc
	}

	return sealedTokens{access: access, refresh: refresh}, nil
}

func (s *AccountStore) open(c *types.Credential, storedRefresh *string) error {
	access, err := s.cipher.Decrypt(c.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	c.AccessToken = access

	if storedRefresh != nil {
		plain, err := s.cipher.Decrypt(*storedRefresh)
		if err != nil {
			return fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		c.RefreshToken = &plain
	}

	return nil
}
