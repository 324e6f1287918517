package app

import (
	"context"

	"levelup-sidequest/internal/domain"
)

// RegistrantStore is the registration storage surface used by game flows.
type RegistrantStore interface {
	RegistrantLookup
	FindByUID(ctx context.Context, uid string) (domain.Registrant, error)
}

// RegistrantRepository adds the write side used by registration and UID backfill.
type RegistrantRepository interface {
	RegistrantStore
	Create(ctx context.Context, reg *domain.Registrant) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
	ListMissingUID(ctx context.Context) ([]domain.Registrant, error)
	AssignUID(ctx context.Context, id int64, uid string) error
	// Search matches query against name, email, inviter and the yes/no salvationist flag,
	// newest first, and returns the requested page with the total match count.
	Search(ctx context.Context, query string, page, perPage int) ([]domain.Registrant, int, error)
}

// QuestRepository loads quest content (from cache/backing store).
type QuestRepository interface {
	GetQuest(ctx context.Context, questID int64) (domain.Quest, error)
	ListQuests(ctx context.Context) ([]domain.Quest, error)
	Invalidate(ctx context.Context, questID int64) error
}

// QuestWriter persists authored quests.
type QuestWriter interface {
	CreateQuest(ctx context.Context, quest *domain.Quest) error
	// UpdateQuest replaces the question and every line of an existing quest.
	UpdateQuest(ctx context.Context, quest *domain.Quest) error
	DeleteQuest(ctx context.Context, questID int64) error
}

// ScoreStore persists quest points and serves the aggregate reads built on them.
type ScoreStore interface {
	// UpsertScore writes the record keyed on (UID, QuestID); the last write wins.
	UpsertScore(ctx context.Context, rec domain.ScoreRecord) error
	CompletedQuestIDs(ctx context.Context, uid string) ([]int64, error)
	TotalPoints(ctx context.Context, uid string) (int, error)
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// CompletedCache caches the quest ids a registrant has completed.
// Get returns the uid's current generation even on a miss; Set is a no-op once
// Invalidate has moved the generation past the one passed in.
type CompletedCache interface {
	Get(ctx context.Context, uid string) (questIDs []int64, gen int64, ok bool, err error)
	Set(ctx context.Context, uid string, questIDs []int64, gen int64) error
	Invalidate(ctx context.Context, uid string) error
}

// SessionStore keeps live game sessions.
type SessionStore interface {
	Save(ctx context.Context, session domain.GameSession) error
	Get(ctx context.Context, sessionID string) (domain.GameSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// ScoreNotifier is told after a score commit is durable and caches are cleared.
type ScoreNotifier interface {
	ScoresChanged(ctx context.Context)
}
