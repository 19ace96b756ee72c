package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Postgres) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

// Connect opens a pool for dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) SaveAccount(ctx context.Context, acc models.Account) error {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts (id, name, email, password_hash, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	_, err := r.pool.Exec(ctx, query,
		acc.ID,
		acc.Name,
		acc.Email,
		acc.PassHash,
		acc.IsVerified,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrAccountExists
		}

		return fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return nil
}

const selectAccount = `
	SELECT id::text, name, email, password_hash, is_verified, created_at, updated_at
	FROM accounts
`

func (r *PostgresRepo) Account(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.postgres.Account"

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectAccount+`WHERE email = $1;`, email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return models.Account{}, err
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

func (r *PostgresRepo) AccountByID(ctx context.Context, id string) (models.Account, error) {
	const op = "storage.postgres.AccountByID"

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectAccount+`WHERE id = $1;`, id))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return models.Account{}, err
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var a models.Account

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PassHash,
		&a.IsVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, storage.ErrAccountNotFound
	}

	return a, err
}

func (r *PostgresRepo) SetEmailVerified(ctx context.Context, id string) error {
	const op = "storage.postgres.SetEmailVerified"

	query := `UPDATE accounts SET is_verified = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_verified`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteAccount removes the account; its tokens go with it through the
// foreign key cascade.
func (r *PostgresRepo) DeleteAccount(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteAccount"

	if _, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveToken(ctx context.Context, token models.VerificationToken) error {
	const op = "storage.postgres.SaveToken"

	const query = `
		INSERT INTO verification_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Tokens(ctx context.Context, accountID string) ([]models.VerificationToken, error) {
	const op = "storage.postgres.Tokens"

	const query = `
		SELECT id::text, account_id::text, token_hash, expires_at, created_at
		FROM verification_tokens
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var list []models.VerificationToken

	for rows.Next() {
		var t models.VerificationToken

		if err := rows.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (r *PostgresRepo) DeleteToken(ctx context.Context, token models.VerificationToken) error {
	const op = "storage.postgres.DeleteToken"

	if _, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE id = $1`, token.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) DeleteTokens(ctx context.Context, accountID string) error {
	const op = "storage.postgres.DeleteTokens"

	if _, err := r.pool.Exec(ctx, `DELETE FROM verification_tokens WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) ExpiredAccountIDs(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.postgres.ExpiredAccountIDs"

	const query = `
		SELECT account_id::text
		FROM verification_tokens
		GROUP BY account_id
		HAVING MAX(expires_at) < $1
		ORDER BY account_id::text
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
