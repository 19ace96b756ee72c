package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"account_service/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "verification:"

// RedisRepo keeps verification tokens in one hash per account, keyed by
// token id. Keys carry no TTL; expiry is judged by the token service so an
// expired token can still be observed and cleaned up.
type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func key(accountID string) string {
	return keyPrefix + accountID
}

// SaveToken stores token under its account's hash.
func (r *RedisRepo) SaveToken(ctx context.Context, token models.VerificationToken) error {
	const op = "storage.redis.SaveToken"

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.HSet(ctx, key(token.AccountID), token.ID, data).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Tokens returns the account's tokens newest first.
func (r *RedisRepo) Tokens(ctx context.Context, accountID string) ([]models.VerificationToken, error) {
	const op = "storage.redis.Tokens"

	raw, err := r.client.HGetAll(ctx, key(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list, err := decodeTokens(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (r *RedisRepo) DeleteToken(ctx context.Context, token models.VerificationToken) error {
	const op = "storage.redis.DeleteToken"

	if err := r.client.HDel(ctx, key(token.AccountID), token.ID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) DeleteTokens(ctx context.Context, accountID string) error {
	const op = "storage.redis.DeleteTokens"

	if err := r.client.Del(ctx, key(accountID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ExpiredAccountIDs scans every account hash and reports those whose
// tokens have all expired.
func (r *RedisRepo) ExpiredAccountIDs(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.redis.ExpiredAccountIDs"

	var ids []string

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		accountID := strings.TrimPrefix(iter.Val(), keyPrefix)

		list, err := r.Tokens(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if len(list) > 0 && allExpired(list, now) {
			ids = append(ids, accountID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slices.Sort(ids)

	return ids, nil
}

func (r *RedisRepo) Close() {
	_ = r.client.Close()
}

func decodeTokens(raw map[string]string) ([]models.VerificationToken, error) {
	list := make([]models.VerificationToken, 0, len(raw))

	for _, v := range raw {
		var t models.VerificationToken
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		list = append(list, t)
	}

	slices.SortFunc(list, func(a, b models.VerificationToken) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	return list, nil
}

func allExpired(list []models.VerificationToken, now time.Time) bool {
	for i := range list {
		if !list[i].IsExpired(now) {
			return false
		}
	}
	return true
}
