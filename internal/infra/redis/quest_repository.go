package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestLoader fetches quest content from a backing store (e.g., Postgres).
type QuestLoader interface {
	LoadQuest(ctx context.Context, questID int64) (domain.Quest, error)
	LoadQuests(ctx context.Context) ([]domain.Quest, error)
}

// QuestRepository caches quests in Redis and falls back to a loader on cache miss.
// Each quest is stored as JSON with its answers: SET quest:{id} {json} EX ttl
type QuestRepository struct {
	client *redis.Client
	loader QuestLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestRepository(client *redis.Client, loader QuestLoader, ttl time.Duration) *QuestRepository {
	return &QuestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestRepository) GetQuest(ctx context.Context, questID int64) (domain.Quest, error) {
	if quest, ok := r.cached(ctx, questID); ok {
		return quest, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(questID, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quest, ok := r.cached(ctx, questID); ok {
			return quest, nil
		}

		quest, err := r.loader.LoadQuest(ctx, questID)
		if err != nil {
			return domain.Quest{}, err
		}
		quest.Normalize()

		if ttl := r.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(quest); err == nil {
				_ = r.client.Set(ctx, questKey(questID), raw, ttl).Err()
			}
		}
		return quest, nil
	})
	if err != nil {
		return domain.Quest{}, err
	}
	return result.(domain.Quest), nil
}

func (r *QuestRepository) ListQuests(ctx context.Context) ([]domain.Quest, error) {
	quests, err := r.loader.LoadQuests(ctx)
	if err != nil {
		return nil, err
	}
	for i := range quests {
		quests[i].Normalize()
	}
	return quests, nil
}

func (r *QuestRepository) Invalidate(ctx context.Context, questID int64) error {
	if err := r.client.Del(ctx, questKey(questID)).Err(); err != nil {
		return fmt.Errorf("invalidate quest %d: %w", questID, err)
	}
	return nil
}

func (r *QuestRepository) cached(ctx context.Context, questID int64) (domain.Quest, bool) {
	raw, err := r.client.Get(ctx, questKey(questID)).Bytes()
	if err != nil {
		return domain.Quest{}, false
	}
	var quest domain.Quest
	if err := json.Unmarshal(raw, &quest); err != nil {
		return domain.Quest{}, false
	}
	return quest, true
}

func (r *QuestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func questKey(questID int64) string {
	return "quest:" + strconv.FormatInt(questID, 10)
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
