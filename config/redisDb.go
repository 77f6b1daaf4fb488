package config

import (
	"context"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb        *redis.Client
	locker     *redislock.Client
	redisReady atomic.Bool
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	if !redisReady.Load() {
		return nil
	}
	return locker
}

// RedisConfigured reports whether REDIS_ADDRESS is set. Without it the
// service runs on in-memory stores only.
func RedisConfigured() bool {
	return strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != ""
}

// RedisReady reports whether the first successful ping has happened.
func RedisReady() bool {
	return redisReady.Load()
}

// InitRedis builds the client without dialing; go-redis connects lazily, so
// the stores can be wired before the server starts listening.
func InitRedis() *redis.Client {
	if !RedisConfigured() {
		return nil
	}
	if rdb != nil {
		return rdb
	}
	rdb = redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0, // use default DB
		PoolSize: 100,
	})
	locker = redislock.New(rdb)
	return rdb
}

// ConnectRedisWithRetry pings until Redis answers and then marks it ready.
// Call this from main() AFTER the HTTP server is listening.
func ConnectRedisWithRetry(ctx context.Context) {
	client := InitRedis()
	if client == nil {
		return
	}

	var attempt int
	for {
		attempt++
		err := client.Ping(ctx).Err()
		if err == nil {
			redisReady.Store(true)
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
