package crud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"socialnet/domain"
	"socialnet/errs"
)

// sessionKeyPrefix namespaces session keys in Redis.
const sessionKeyPrefix = "session:"

// RedisSessionService keeps sessions in Redis, one key per hashed token, expiring with the session.
// It implements the domain.SessionService interface.
type RedisSessionService struct {
	client *redis.Client
	hmac   HMAC
	ttl    time.Duration
}

// NewRedisSessionService returns an instance of RedisSessionService.
func NewRedisSessionService(client *redis.Client, hmacKey string, ttl time.Duration) *RedisSessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionService{
		client: client,
		hmac:   newHMAC(hmacKey),
		ttl:    ttl,
	}
}

var _ domain.SessionService = &RedisSessionService{}

func (rs *RedisSessionService) key(token string) string {
	return sessionKeyPrefix + rs.hmac.hash(token)
}

// Create issues a new session for the user and returns its token.
func (rs *RedisSessionService) Create(ctx context.Context, userID int) (string, error) {
	if userID <= 0 {
		return "", errs.Errorf(errs.EINVALID, "Invalid user.")
	}
	token, err := MakeSessionToken()
	if err != nil {
		return "", err
	}
	if err := rs.client.Set(ctx, rs.key(token), userID, rs.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// UserID resolves a token to the id of the user it was issued for.
func (rs *RedisSessionService) UserID(ctx context.Context, token string) (int, error) {
	if err := tokenValid(token); err != nil {
		return 0, err
	}
	val, err := rs.client.Get(ctx, rs.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, errs.Errorf(errs.EUNAUTHORIZED, "The session is invalid.")
		}
		return 0, fmt.Errorf("load session: %w", err)
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value %q: %w", val, err)
	}
	return id, nil
}

// Delete invalidates the session of a token. Unknown tokens are ignored.
func (rs *RedisSessionService) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := rs.client.Del(ctx, rs.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
