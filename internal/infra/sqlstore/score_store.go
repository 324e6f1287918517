package sqlstore

import (
	"context"
	"fmt"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/uptrace/bun"
)

// ScoreStore implements app.ScoreStore on quest_scores.
type ScoreStore struct {
	db *bun.DB
}

func NewScoreStore(db *bun.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

// UpsertScore is a single conditional write keyed on (uid, quest_id).
func (s *ScoreStore) UpsertScore(ctx context.Context, rec domain.ScoreRecord) error {
	now := rec.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	m := scoreModel{
		UID:       rec.UID,
		QuestID:   rec.QuestID,
		Points:    rec.Points,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NewInsert().
		Model(&m).
		On("CONFLICT (uid, quest_id) DO UPDATE").
		Set("points = EXCLUDED.points").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert score %s/%d: %w", rec.UID, rec.QuestID, err)
	}
	return nil
}

func (s *ScoreStore) CompletedQuestIDs(ctx context.Context, uid string) ([]int64, error) {
	ids := []int64{}
	err := s.db.NewSelect().
		Model((*scoreModel)(nil)).
		Column("quest_id").
		Where("uid = ?", uid).
		Order("quest_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("completed quests for %s: %w", uid, err)
	}
	return ids, nil
}

func (s *ScoreStore) TotalPoints(ctx context.Context, uid string) (int, error) {
	var total int
	err := s.db.NewSelect().
		Model((*scoreModel)(nil)).
		ColumnExpr("COALESCE(SUM(points), 0)").
		Where("uid = ?", uid).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("total points for %s: %w", uid, err)
	}
	return total, nil
}

// Leaderboard sums points per registrant. Scores whose uid matches no registrant are skipped.
func (s *ScoreStore) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var rows []leaderboardRow
	err := s.db.NewSelect().
		TableExpr("quest_scores AS qs").
		Join("JOIN registrants AS r ON r.uid = qs.uid").
		ColumnExpr("qs.uid AS uid").
		ColumnExpr("r.name AS name").
		ColumnExpr("SUM(qs.points) AS total_points").
		GroupExpr("qs.uid, r.name").
		OrderExpr("total_points DESC, r.name ASC, qs.uid ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.LeaderboardEntry{UID: r.UID, Name: r.Name, TotalPoints: r.TotalPoints})
	}
	return entries, nil
}

type leaderboardRow struct {
	UID         string `bun:"uid"`
	Name        string `bun:"name"`
	TotalPoints int    `bun:"total_points"`
}
