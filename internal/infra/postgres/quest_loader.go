package postgres

import (
	"context"
	"fmt"

	"levelup-sidequest/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestLoader reads quests straight from Postgres with one join per read.
type QuestLoader struct {
	pool *pgxpool.Pool
}

func NewQuestLoader(pool *pgxpool.Pool) *QuestLoader {
	return &QuestLoader{pool: pool}
}

const questColumns = `
SELECT q.id, q.question, q.created_at,
       l.id, l.position, l.input_type, l.placeholder, l.is_question,
       l.answer, l.validation_rule, l.name_ref, l.points
FROM quests q
LEFT JOIN quest_lines l ON l.quest_id = q.id`

func (l *QuestLoader) LoadQuest(ctx context.Context, questID int64) (domain.Quest, error) {
	rows, err := l.pool.Query(ctx, questColumns+` WHERE q.id = $1 ORDER BY l.position`, questID)
	if err != nil {
		return domain.Quest{}, fmt.Errorf("load quest: %w", err)
	}
	quests, err := scanQuests(rows)
	if err != nil {
		return domain.Quest{}, fmt.Errorf("load quest: %w", err)
	}
	if len(quests) == 0 {
		return domain.Quest{}, domain.ErrQuestNotFound
	}
	return quests[0], nil
}

func (l *QuestLoader) LoadQuests(ctx context.Context) ([]domain.Quest, error) {
	rows, err := l.pool.Query(ctx, questColumns+` ORDER BY q.id, l.position`)
	if err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	quests, err := scanQuests(rows)
	if err != nil {
		return nil, fmt.Errorf("load quests: %w", err)
	}
	return quests, nil
}

// scanQuests folds header+line rows, ordered by quest id, into quests.
func scanQuests(rows pgx.Rows) ([]domain.Quest, error) {
	defer rows.Close()
	var quests []domain.Quest
	for rows.Next() {
		var (
			q           domain.Quest
			lineID      *int64
			position    *int32
			inputType   *string
			placeholder *string
			isQuestion  *bool
			answer      *string
			rule        *string
			nameRef     *int32
			points      *int32
		)
		if err := rows.Scan(&q.ID, &q.Question, &q.CreatedAt,
			&lineID, &position, &inputType, &placeholder, &isQuestion,
			&answer, &rule, &nameRef, &points); err != nil {
			return nil, err
		}
		if n := len(quests); n == 0 || quests[n-1].ID != q.ID {
			q.Lines = []domain.QuestLine{}
			quests = append(quests, q)
		}
		if lineID == nil {
			continue
		}
		line := domain.QuestLine{
			ID:             *lineID,
			QuestID:        q.ID,
			Position:       int(*position),
			InputType:      *inputType,
			Placeholder:    *placeholder,
			IsQuestion:     *isQuestion,
			Answer:         answer,
			ValidationRule: domain.Rule(*rule),
			Points:         int(*points),
		}
		if nameRef != nil {
			ref := int(*nameRef)
			line.NameRef = &ref
		}
		cur := &quests[len(quests)-1]
		cur.Lines = append(cur.Lines, line)
	}
	return quests, rows.Err()
}
