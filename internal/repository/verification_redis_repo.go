package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const verificationKeyPrefix = "verification:"

type redisVerificationRepo struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisVerificationCodeRepository creates a code repository that keeps one
// hash per email, mapping code to its expiry in unix milliseconds. The hash
// expires with the newest code, so abandoned entries clean themselves up.
func NewRedisVerificationCodeRepository(client redis.UniversalClient) VerificationCodeRepository {
	return &redisVerificationRepo{client: client, now: time.Now}
}

func verificationKey(email string) string {
	return verificationKeyPrefix + email
}

func (r *redisVerificationRepo) Create(ctx context.Context, email, code string, expiresAt time.Time) error {
	if !expiresAt.After(r.now()) {
		return nil
	}

	// The key dies at the code's own expiry, to the millisecond.
	key := verificationKey(email)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, code, expiresAt.UnixMilli())
		pipe.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return nil
}

func (r *redisVerificationRepo) Exists(ctx context.Context, email, code string, now time.Time) (bool, error) {
	raw, err := r.client.HGet(ctx, verificationKey(email), code).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load verification code: %w", err)
	}

	expiresMillis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse verification code expiry: %w", err)
	}
	return now.Before(time.UnixMilli(expiresMillis)), nil
}

func (r *redisVerificationRepo) DeleteForEmail(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, verificationKey(email)).Err(); err != nil {
		return fmt.Errorf("delete verification codes: %w", err)
	}
	return nil
}

var _ VerificationCodeRepository = (*redisVerificationRepo)(nil)
