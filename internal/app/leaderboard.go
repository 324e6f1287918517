package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"levelup-sidequest/internal/domain"
)

// LeaderboardService aggregates quest points and fans snapshots out to live subscribers.
type LeaderboardService struct {
	scores ScoreStore
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardService(scores ScoreStore, logger *slog.Logger) *LeaderboardService {
	return NewLeaderboardServiceWithClock(scores, logger, time.Now)
}

// NewLeaderboardServiceWithClock is test-only for deterministic timestamps.
func NewLeaderboardServiceWithClock(scores ScoreStore, logger *slog.Logger, now func() time.Time) *LeaderboardService {
	return &LeaderboardService{
		scores:      scores,
		logger:      logger,
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Snapshot reads the current leaderboard: points desc, then name, then uid.
func (l *LeaderboardService) Snapshot(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := l.scores.Leaderboard(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].UID < entries[j].UID
	})
	for i := range entries {
		entries[i].Rank = i + 1
		// Shared totals share a rank.
		if i > 0 && entries[i].TotalPoints == entries[i-1].TotalPoints {
			entries[i].Rank = entries[i-1].Rank
		}
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: l.now()}, nil
}

// Subscribe returns a channel that receives leaderboard snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (l *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := l.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel, nil
}

// ScoresChanged recomputes the leaderboard and broadcasts it. Implements ScoreNotifier.
func (l *LeaderboardService) ScoresChanged(ctx context.Context) {
	l.mu.Lock()
	n := len(l.subscribers)
	l.mu.Unlock()
	if n == 0 {
		return
	}

	lb, err := l.Snapshot(ctx)
	if err != nil {
		l.logger.Error("leaderboard refresh failed", "error", err)
		return
	}
	l.broadcast(lb)
}

func (l *LeaderboardService) broadcast(lb domain.Leaderboard) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
