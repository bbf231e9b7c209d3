package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock implements ports.JobLock using Redis SET NX + TTL.
type JobLock struct {
	client *goredis.Client
	prefix string
}

// NewJobLock creates a new Redis-backed job lock.
func NewJobLock(client *goredis.Client) *JobLock {
	return &JobLock{
		client: client,
		prefix: "joblock:",
	}
}

// TryAcquire atomically takes the named lock for ttl.
// Returns false if another owner still holds it.
func (l *JobLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	owner := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+name, owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis job lock acquire: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return owner, true, nil
}

// Release deletes the lock if owner still holds it. The compare and delete
// run as one script so an expired lock re-taken by another owner survives.
func (l *JobLock) Release(ctx context.Context, name string, owner string) error {
	if owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, owner).Err(); err != nil {
		return fmt.Errorf("redis job lock release: %w", err)
	}
	return nil
}
