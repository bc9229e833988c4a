package yascheduler

import (
	"context"
	"net/http"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every lock key in Redis.
const KeyPrefix = "yatgposter:lock:"

// unlockScript deletes the key only while it still holds our owner token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
// Claims are plain keys written with SET NX PX; each locker has its own owner
// token so it can only release what it took.
type RedisLocker struct {
	client *redis.Client
	owner  string
}

// NewRedisLocker wraps an already connected client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.NewString(),
	}
}

// NewRedisClient dials Redis and performs an initial PING.
//
// Example usage:
//
//	client, err := yascheduler.NewRedisClient(ctx, "127.0.0.1:6379", "", 0, log)
func NewRedisClient(
	ctx context.Context,
	addr string,
	password string,
	db int,
	log yalogger.Logger,
) (*redis.Client, yaerrors.Error) {
	log = yalogger.OrDefault(log)

	log.Infof("Redis connecting to addr %s", addr)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to connect redis")
	}

	log.Infof("Redis connected to addr %s", addr)

	return client, nil
}

func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, yaerrors.Error) {
	ok, err := r.client.SetNX(ctx, KeyPrefix+key, r.owner, ttl).Result()
	if err != nil {
		return false, yaerrors.FromError(http.StatusInternalServerError, err, "failed to take lock "+key)
	}

	return ok, nil
}

func (r *RedisLocker) Unlock(ctx context.Context, key string) yaerrors.Error {
	if err := unlockScript.Run(ctx, r.client, []string{KeyPrefix + key}, r.owner).Err(); err != nil {
		return yaerrors.FromError(http.StatusInternalServerError, err, "failed to release lock "+key)
	}

	return nil
}
