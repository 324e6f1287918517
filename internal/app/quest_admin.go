package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"levelup-sidequest/internal/domain"
)

// QuestAdmin authors quests and keeps the quest cache coherent with writes.
type QuestAdmin struct {
	writer QuestWriter
	quests QuestRepository
	logger *slog.Logger
}

func NewQuestAdmin(writer QuestWriter, quests QuestRepository, logger *slog.Logger) *QuestAdmin {
	return &QuestAdmin{writer: writer, quests: quests, logger: logger}
}

// List returns every quest including expected answers.
func (a *QuestAdmin) List(ctx context.Context) ([]domain.Quest, error) {
	return a.quests.ListQuests(ctx)
}

// Search filters quests by a case-insensitive question substring and returns one page in id order.
func (a *QuestAdmin) Search(ctx context.Context, query string, page, perPage int) (domain.Page[domain.Quest], error) {
	all, err := a.quests.ListQuests(ctx)
	if err != nil {
		return domain.Page[domain.Quest]{}, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	matched := all[:0]
	for _, q := range all {
		if query == "" || strings.Contains(strings.ToLower(q.Question), query) {
			matched = append(matched, q)
		}
	}
	return domain.Paginate(matched, page, perPage), nil
}

// Get returns one quest including expected answers.
func (a *QuestAdmin) Get(ctx context.Context, questID int64) (domain.Quest, error) {
	return a.quests.GetQuest(ctx, questID)
}

// Create normalises and validates the quest before storing it.
func (a *QuestAdmin) Create(ctx context.Context, quest domain.Quest) (domain.Quest, error) {
	quest.Normalize()
	if err := quest.Validate(); err != nil {
		return domain.Quest{}, err
	}
	if err := a.writer.CreateQuest(ctx, &quest); err != nil {
		return domain.Quest{}, fmt.Errorf("create quest: %w", err)
	}
	if err := a.quests.Invalidate(ctx, quest.ID); err != nil {
		a.logger.Warn("quest cache invalidation failed", "quest_id", quest.ID, "error", err)
	}
	a.logger.Info("quest created", "quest_id", quest.ID, "lines", len(quest.Lines))
	return quest, nil
}

// Update replaces the question and lines of questID after the same checks as Create.
func (a *QuestAdmin) Update(ctx context.Context, questID int64, quest domain.Quest) (domain.Quest, error) {
	quest.ID = questID
	quest.Normalize()
	if err := quest.Validate(); err != nil {
		return domain.Quest{}, err
	}
	if err := a.writer.UpdateQuest(ctx, &quest); err != nil {
		if errors.Is(err, domain.ErrQuestNotFound) {
			return domain.Quest{}, err
		}
		return domain.Quest{}, fmt.Errorf("update quest: %w", err)
	}
	if err := a.quests.Invalidate(ctx, questID); err != nil {
		a.logger.Warn("quest cache invalidation failed", "quest_id", questID, "error", err)
	}
	a.logger.Info("quest updated", "quest_id", questID, "lines", len(quest.Lines))
	return quest, nil
}

// Delete removes a quest and drops it from the cache.
func (a *QuestAdmin) Delete(ctx context.Context, questID int64) error {
	if err := a.writer.DeleteQuest(ctx, questID); err != nil {
		return err
	}
	if err := a.quests.Invalidate(ctx, questID); err != nil {
		a.logger.Warn("quest cache invalidation failed", "quest_id", questID, "error", err)
	}
	a.logger.Info("quest deleted", "quest_id", questID)
	return nil
}

// Seed creates every quest in order, stopping at the first failure.
func (a *QuestAdmin) Seed(ctx context.Context, quests []domain.Quest) (int, error) {
	for i, q := range quests {
		if _, err := a.Create(ctx, q); err != nil {
			return i, fmt.Errorf("seed quest %q: %w", q.Question, err)
		}
	}
	return len(quests), nil
}
