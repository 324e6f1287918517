package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"levelup-sidequest/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestLoader fetches quest content from a backing store (e.g., Postgres).
type QuestLoader interface {
	LoadQuest(ctx context.Context, questID int64) (domain.Quest, error)
	LoadQuests(ctx context.Context) ([]domain.Quest, error)
}

// QuestRepository caches quests with TTL to avoid repeated DB hits.
// Listing always goes to the loader; single-quest reads (the hot path on submission) are cached.
type QuestRepository struct {
	loader QuestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[int64]cachedQuest
}

type cachedQuest struct {
	quest     domain.Quest
	expiresAt time.Time
}

func NewQuestRepository(loader QuestLoader, ttl time.Duration) *QuestRepository {
	return &QuestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuest),
	}
}

func (r *QuestRepository) GetQuest(ctx context.Context, questID int64) (domain.Quest, error) {
	if quest, ok := r.cached(questID); ok {
		return quest, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(questID, 10), func() (interface{}, error) {
		if quest, ok := r.cached(questID); ok {
			return quest, nil
		}

		quest, err := r.loader.LoadQuest(ctx, questID)
		if err != nil {
			return domain.Quest{}, err
		}
		quest.Normalize()

		r.mu.Lock()
		r.cache[questID] = cachedQuest{
			quest:     quest,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
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

func (r *QuestRepository) Invalidate(_ context.Context, questID int64) error {
	r.mu.Lock()
	delete(r.cache, questID)
	r.mu.Unlock()
	return nil
}

func (r *QuestRepository) cached(questID int64) (domain.Quest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[questID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quest{}, false
	}
	return entry.quest, true
}

func (r *QuestRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// QuestStore is an in-memory quest store, used as loader and writer for demos and tests.
type QuestStore struct {
	mu     sync.RWMutex
	nextID int64
	quests map[int64]domain.Quest
}

// NewQuestStore seeds the store; quests without an ID get one assigned.
func NewQuestStore(quests ...domain.Quest) *QuestStore {
	s := &QuestStore{quests: make(map[int64]domain.Quest)}
	for _, q := range quests {
		_ = s.CreateQuest(context.Background(), &q)
	}
	return s
}

func (s *QuestStore) LoadQuest(_ context.Context, questID int64) (domain.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quest, ok := s.quests[questID]; ok {
		return cloneQuest(quest), nil
	}
	return domain.Quest{}, domain.ErrQuestNotFound
}

func (s *QuestStore) LoadQuests(_ context.Context) ([]domain.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quest, 0, len(s.quests))
	for _, q := range s.quests {
		out = append(out, cloneQuest(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *QuestStore) CreateQuest(_ context.Context, quest *domain.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quest.ID == 0 {
		s.nextID++
		quest.ID = s.nextID
	} else if quest.ID > s.nextID {
		s.nextID = quest.ID
	}
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now()
	}
	s.storeLocked(quest)
	return nil
}

// UpdateQuest swaps in the new question and lines; the creation time is kept.
func (s *QuestStore) UpdateQuest(_ context.Context, quest *domain.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quests[quest.ID]
	if !ok {
		return domain.ErrQuestNotFound
	}
	quest.CreatedAt = current.CreatedAt
	delete(s.quests, quest.ID)
	for i := range quest.Lines {
		quest.Lines[i].ID = 0
	}
	s.storeLocked(quest)
	return nil
}

func (s *QuestStore) storeLocked(quest *domain.Quest) {
	var lineID int64
	for _, q := range s.quests {
		for _, l := range q.Lines {
			if l.ID > lineID {
				lineID = l.ID
			}
		}
	}
	for i := range quest.Lines {
		quest.Lines[i].QuestID = quest.ID
		quest.Lines[i].Position = i
		if quest.Lines[i].ID == 0 {
			lineID++
			quest.Lines[i].ID = lineID
		}
	}
	s.quests[quest.ID] = cloneQuest(*quest)
}

func (s *QuestStore) DeleteQuest(_ context.Context, questID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quests[questID]; !ok {
		return domain.ErrQuestNotFound
	}
	delete(s.quests, questID)
	return nil
}

func cloneQuest(q domain.Quest) domain.Quest {
	lines := make([]domain.QuestLine, len(q.Lines))
	copy(lines, q.Lines)
	q.Lines = lines
	return q
}
