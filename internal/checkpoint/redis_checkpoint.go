package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// checkpointTTL keeps stale run cursors from accumulating forever.
const checkpointTTL = 7 * 24 * time.Hour

type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, runID, collection string) (int, error) {
	val, err := r.client.Get(ctx, key(runID, collection)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("corrupt checkpoint %s: %w", key(runID, collection), err)
	}
	return offset, nil
}

func (r *Redis) Set(ctx context.Context, runID, collection string, offset int) error {
	return r.client.Set(ctx, key(runID, collection), strconv.Itoa(offset), checkpointTTL).Err()
}

func key(runID, collection string) string {
	return "petalsync:checkpoint:" + runID + ":" + collection
}
