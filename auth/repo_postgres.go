package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountsSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

type postgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates the accounts table if needed.
func NewPostgresAccountRepository(ctx context.Context, pool *pgxpool.Pool) (Repository, error) {
	if _, err := pool.Exec(ctx, accountsSchema); err != nil {
		return nil, fmt.Errorf("creating accounts table: %w", err)
	}
	return &postgresAccountRepository{pool: pool}, nil
}

func (r *postgresAccountRepository) FindByName(username string) (*Account, error) {
	return r.findBy("username", username)
}

func (r *postgresAccountRepository) FindByEmail(email string) (*Account, error) {
	return r.findBy("email", email)
}

func (r *postgresAccountRepository) findBy(column, val string) (*Account, error) {
	var (
		acc Account
		id  string
	)
	q := fmt.Sprintf(`SELECT id, username, email, password, created_at FROM accounts WHERE %s = $1`, column)
	err := r.pool.QueryRow(context.TODO(), q, val).Scan(&id, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.ID = ID(id)
	return &acc, nil
}

func (r *postgresAccountRepository) Store(acc *Account) error {
	_, err := r.pool.Exec(context.TODO(),
		`INSERT INTO accounts (id, username, email, password, created_at) VALUES ($1, $2, $3, $4, $5)`,
		string(acc.ID), acc.Username, acc.Email, acc.PasswordHash, acc.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "accounts_username_key":
			return ErrExistingUsername
		case "accounts_email_key":
			return ErrExistingEmail
		}
	}
	return err
}
