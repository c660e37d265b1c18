package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"moff.io/moff-connector/internal/config"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

var (
	Redis       *redis.Client
	RateLimiter *redis_rate.Limiter
)

func Init(cred *config.DBCredential) {
	db, _ := strconv.ParseInt(cred.Database, 10, 64)
	Redis = redis.NewClient(&redis.Options{
		Addr:     cred.GetRedisAddress(),
		Password: cred.Password,
		DB:       int(db),
	})
	if _, err := Redis.Ping(context.TODO()).Result(); err != nil {
		log.Fatalf("ping to redis:%v", err)
	}
	RateLimiter = redis_rate.NewLimiter(Redis)
	log.Info("Connected to redis...")
}

func Close() {
	if Redis != nil {
		Redis.Close()
		Redis = nil
	}
}

const (
	keyPrefix          = "moff_connector:"
	lastConnectionKey  = keyPrefix + "last_connection"
	activateRatePrefix = keyPrefix + "activate:"
)

// Connection is the snapshot of the last connector that reached a connected state.
type Connection struct {
	Connector   string   `json:"connector"`
	ChainID     uint64   `json:"chain_id"`
	Accounts    []string `json:"accounts"`
	ConnectedAt int64    `json:"connected_at"`
}

func SaveLastConnection(ctx context.Context, conn Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return errors.Wrap(err, "marshal last connection")
	}
	err = Redis.Set(ctx, lastConnectionKey, data, 0).Err()
	return errors.WrapAndReport(err, "save last connection")
}

// LastConnection returns the saved snapshot, nil when none was saved.
func LastConnection(ctx context.Context) (*Connection, error) {
	data, err := Redis.Get(ctx, lastConnectionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapAndReport(err, "query last connection")
	}
	var conn Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, errors.Wrap(err, "unmarshal last connection")
	}
	return &conn, nil
}

func ClearLastConnection(ctx context.Context) error {
	return errors.WrapAndReport(Redis.Del(ctx, lastConnectionKey).Err(), "clear last connection")
}

// Dedup claims queue message ids with SETNX.
type Dedup struct{}

func (Dedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := Redis.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, errors.WrapAndReport(err, "claim deduplication key")
	}
	return set, nil
}

func (Dedup) Release(ctx context.Context, key string) error {
	return errors.WrapAndReport(Redis.Del(ctx, keyPrefix+key).Err(), "release deduplication key")
}

// ActivateLimiter allows perMinute activations per caller.
type ActivateLimiter struct {
	perMinute int
}

func NewActivateLimiter(perMinute int) *ActivateLimiter {
	return &ActivateLimiter{perMinute: perMinute}
}

func activateRateKey(caller string) string {
	return activateRatePrefix + caller
}

// Allow reports whether caller may activate now. A non positive rate allows everything.
func (l *ActivateLimiter) Allow(ctx context.Context, caller string) (bool, error) {
	if l.perMinute <= 0 {
		return true, nil
	}
	res, err := RateLimiter.Allow(ctx, activateRateKey(caller), redis_rate.PerMinute(l.perMinute))
	if err != nil {
		return false, errors.WrapAndReport(err, "rate limit activation")
	}
	return res.Allowed > 0, nil
}
