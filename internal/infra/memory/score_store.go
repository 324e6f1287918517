package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"levelup-sidequest/internal/domain"
)

type scoreKey struct {
	uid     string
	questID int64
}

// ScoreStore is an in-memory implementation of app.ScoreStore.
// The leaderboard joins against the registrant store for display names.
type ScoreStore struct {
	registrants *RegistrantStore

	mu     sync.RWMutex
	scores map[scoreKey]domain.ScoreRecord
}

func NewScoreStore(registrants *RegistrantStore) *ScoreStore {
	return &ScoreStore{
		registrants: registrants,
		scores:      make(map[scoreKey]domain.ScoreRecord),
	}
}

func (s *ScoreStore) UpsertScore(_ context.Context, rec domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[scoreKey{uid: rec.UID, questID: rec.QuestID}] = rec
	return nil
}

func (s *ScoreStore) CompletedQuestIDs(_ context.Context, uid string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []int64{}
	for k := range s.scores {
		if k.uid == uid {
			ids = append(ids, k.questID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *ScoreStore) TotalPoints(_ context.Context, uid string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for k, rec := range s.scores {
		if k.uid == uid {
			total += rec.Points
		}
	}
	return total, nil
}

// Records returns every stored score. Used by tests to assert upsert semantics.
func (s *ScoreStore) Records() []domain.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoreRecord, 0, len(s.scores))
	for _, rec := range s.scores {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UID != out[j].UID {
			return out[i].UID < out[j].UID
		}
		return out[i].QuestID < out[j].QuestID
	})
	return out
}

func (s *ScoreStore) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	totals := make(map[string]int)
	for k, rec := range s.scores {
		totals[k.uid] += rec.Points
	}
	s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for uid, total := range totals {
		reg, err := s.registrants.FindByUID(ctx, uid)
		if errors.Is(err, domain.ErrRegistrantNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.LeaderboardEntry{UID: uid, Name: reg.Name, TotalPoints: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].UID < entries[j].UID
	})
	return entries, nil
}
