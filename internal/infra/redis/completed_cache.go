package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds the caller's generation.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// CompletedCache stores each registrant's completed quest ids under completed:{uid}
// and an invalidation counter under completed:{uid}:gen.
type CompletedCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCompletedCache(client *redis.Client, ttl time.Duration) *CompletedCache {
	return &CompletedCache{client: client, ttl: ttl}
}

func (c *CompletedCache) Get(ctx context.Context, uid string) ([]int64, int64, bool, error) {
	vals, err := c.client.MGet(ctx, completedKey(uid), generationKey(uid)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("get completed %s: %w", uid, err)
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, false, fmt.Errorf("parse completed generation %s: %w", uid, err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		return nil, gen, false, nil
	}
	return ids, gen, true, nil
}

// Set stores the ids only if no Invalidate happened since the Get that returned gen.
func (c *CompletedCache) Set(ctx context.Context, uid string, questIDs []int64, gen int64) error {
	if c.ttl <= 0 {
		return nil
	}
	if questIDs == nil {
		questIDs = []int64{}
	}
	raw, err := json.Marshal(questIDs)
	if err != nil {
		return fmt.Errorf("encode completed: %w", err)
	}
	keys := []string{completedKey(uid), generationKey(uid)}
	if err := setIfGeneration.Run(ctx, c.client, keys, strconv.FormatInt(gen, 10), string(raw), c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("set completed %s: %w", uid, err)
	}
	return nil
}

func (c *CompletedCache) Invalidate(ctx context.Context, uid string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(uid))
		pipe.Del(ctx, completedKey(uid))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate completed %s: %w", uid, err)
	}
	return nil
}

func completedKey(uid string) string {
	return "completed:" + uid
}

func generationKey(uid string) string {
	return completedKey(uid) + ":gen"
}
