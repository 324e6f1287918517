package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/uptrace/bun"
)

// QuestStore loads and writes quests with their ordered lines.
// It serves as the loader behind the cached quest repositories.
type QuestStore struct {
	db *bun.DB
}

func NewQuestStore(db *bun.DB) *QuestStore {
	return &QuestStore{db: db}
}

func (s *QuestStore) LoadQuest(ctx context.Context, questID int64) (domain.Quest, error) {
	var m questModel
	err := s.db.NewSelect().
		Model(&m).
		Relation("Lines", orderLines).
		Where("q.id = ?", questID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	if err != nil {
		return domain.Quest{}, fmt.Errorf("load quest %d: %w", questID, err)
	}
	return m.toDomain(), nil
}

func (s *QuestStore) LoadQuests(ctx context.Context) ([]domain.Quest, error) {
	var rows []questModel
	err := s.db.NewSelect().
		Model(&rows).
		Relation("Lines", orderLines).
		Order("q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	out := make([]domain.Quest, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// CreateQuest inserts the header and its lines in one transaction and fills in the generated ids.
func (s *QuestStore) CreateQuest(ctx context.Context, quest *domain.Quest) error {
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = time.Now().UTC()
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		header := questModel{ID: quest.ID, Question: quest.Question, CreatedAt: quest.CreatedAt}
		if _, err := tx.NewInsert().Model(&header).Exec(ctx); err != nil {
			return fmt.Errorf("insert quest: %w", err)
		}
		quest.ID = header.ID
		return insertLines(ctx, tx, quest)
	})
}

// UpdateQuest rewrites the header and replaces every line in one transaction.
func (s *QuestStore) UpdateQuest(ctx context.Context, quest *domain.Quest) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var header questModel
		err := tx.NewSelect().Model(&header).Where("q.id = ?", quest.ID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrQuestNotFound
		}
		if err != nil {
			return fmt.Errorf("load quest %d: %w", quest.ID, err)
		}
		quest.CreatedAt = header.CreatedAt

		header.Question = quest.Question
		if _, err := tx.NewUpdate().Model(&header).Column("question").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("update quest: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questLineModel)(nil)).Where("quest_id = ?", quest.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete quest lines: %w", err)
		}
		return insertLines(ctx, tx, quest)
	})
}

func insertLines(ctx context.Context, tx bun.Tx, quest *domain.Quest) error {
	if len(quest.Lines) == 0 {
		return nil
	}
	lines := make([]*questLineModel, len(quest.Lines))
	for i, l := range quest.Lines {
		lines[i] = &questLineModel{
			QuestID:        quest.ID,
			Position:       i,
			InputType:      l.InputType,
			Placeholder:    l.Placeholder,
			IsQuestion:     l.IsQuestion,
			Answer:         l.Answer,
			ValidationRule: string(l.ValidationRule),
			NameRef:        l.NameRef,
			Points:         l.Points,
		}
	}
	if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
		return fmt.Errorf("insert quest lines: %w", err)
	}
	for i, l := range lines {
		quest.Lines[i].ID = l.ID
		quest.Lines[i].QuestID = quest.ID
		quest.Lines[i].Position = i
	}
	return nil
}

func (s *QuestStore) DeleteQuest(ctx context.Context, questID int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*questLineModel)(nil)).Where("quest_id = ?", questID).Exec(ctx); err != nil {
			return fmt.Errorf("delete quest lines: %w", err)
		}
		res, err := tx.NewDelete().Model((*questModel)(nil)).Where("id = ?", questID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete quest: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrQuestNotFound
		}
		return nil
	})
}

func orderLines(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("ql.position ASC")
}
