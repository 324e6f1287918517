package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"levelup-sidequest/internal/domain"
)

// QuestService contains the side-quest use cases: browsing, validating and scoring attempts.
type QuestService struct {
	quests      QuestRepository
	registrants RegistrantStore
	scores      ScoreStore
	completed   CompletedCache
	notifier    ScoreNotifier
	logger      *slog.Logger
	now         func() time.Time
}

// QuestServiceOption customises a QuestService.
type QuestServiceOption func(*QuestService)

// WithScoreNotifier registers a listener for committed scores.
func WithScoreNotifier(n ScoreNotifier) QuestServiceOption {
	return func(s *QuestService) { s.notifier = n }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) QuestServiceOption {
	return func(s *QuestService) { s.now = now }
}

func NewQuestService(quests QuestRepository, registrants RegistrantStore, scores ScoreStore, completed CompletedCache, logger *slog.Logger, opts ...QuestServiceOption) *QuestService {
	s := &QuestService{
		quests:      quests,
		registrants: registrants,
		scores:      scores,
		completed:   completed,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuestBoard is the quest list as seen by one player.
type QuestBoard struct {
	Quests            []domain.Quest `json:"quests"`
	CompletedQuestIDs []int64        `json:"completedQuestIds"`
	TotalPoints       int            `json:"totalPoints"`
}

// Board lists every quest (answers stripped) with the caller's completions and points.
func (s *QuestService) Board(ctx context.Context, principal *domain.Principal) (QuestBoard, error) {
	caller, err := s.caller(ctx, principal)
	if err != nil {
		return QuestBoard{}, err
	}
	quests, err := s.quests.ListQuests(ctx)
	if err != nil {
		return QuestBoard{}, err
	}
	completed, err := s.CompletedQuestIDs(ctx, caller.UID)
	if err != nil {
		return QuestBoard{}, err
	}
	total, err := s.scores.TotalPoints(ctx, caller.UID)
	if err != nil {
		return QuestBoard{}, err
	}

	board := QuestBoard{
		Quests:            make([]domain.Quest, 0, len(quests)),
		CompletedQuestIDs: completed,
		TotalPoints:       total,
	}
	for _, q := range quests {
		board.Quests = append(board.Quests, q.Public())
	}
	return board, nil
}

// Quest returns one quest without answers and whether the caller already completed it.
func (s *QuestService) Quest(ctx context.Context, principal *domain.Principal, questID int64) (domain.Quest, bool, error) {
	caller, err := s.caller(ctx, principal)
	if err != nil {
		return domain.Quest{}, false, err
	}
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		return domain.Quest{}, false, err
	}
	completed, err := s.CompletedQuestIDs(ctx, caller.UID)
	if err != nil {
		return domain.Quest{}, false, err
	}
	for _, id := range completed {
		if id == questID {
			return quest.Public(), true, nil
		}
	}
	return quest.Public(), false, nil
}

// CompletedQuestIDs reads through the completed-quest cache. The fill carries the
// generation seen on the miss, so a commit landing in between wins over the stale read.
func (s *QuestService) CompletedQuestIDs(ctx context.Context, uid string) ([]int64, error) {
	cached, gen, ok, cacheErr := s.completed.Get(ctx, uid)
	if cacheErr == nil && ok {
		return cached, nil
	}
	if cacheErr != nil {
		s.logger.Warn("completed cache read failed", "uid", uid, "error", cacheErr)
	}

	ids, err := s.scores.CompletedQuestIDs(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("completed quests: %w", err)
	}
	if cacheErr == nil {
		if err := s.completed.Set(ctx, uid, ids, gen); err != nil {
			s.logger.Warn("completed cache write failed", "uid", uid, "error", err)
		}
	}
	return ids, nil
}

// ValidateQuest evaluates an attempt line by line and commits the score when every line passes.
// Rules, answers and points come from the stored quest; only answer values are taken from the caller.
func (s *QuestService) ValidateQuest(ctx context.Context, questID int64, answers []domain.SubmittedAnswer, principal *domain.Principal) (domain.QuestOutcome, error) {
	caller, err := s.caller(ctx, principal)
	if err != nil {
		return domain.QuestOutcome{}, err
	}
	quest, err := s.quests.GetQuest(ctx, questID)
	if err != nil {
		return domain.QuestOutcome{}, err
	}

	values := make([]string, len(quest.Lines))
	for i := range quest.Lines {
		if i < len(answers) {
			values[i] = answers[i].Value
		}
	}

	evaluator := NewRuleEvaluator(newMemoLookup(s.registrants))
	outcome := domain.QuestOutcome{
		QuestID: quest.ID,
		Results: make([]domain.LineResult, 0, len(quest.Lines)),
		Success: true,
	}
	for i, line := range quest.Lines {
		if i < len(answers) && answers[i].ValidationRule != "" && domain.Rule(answers[i].ValidationRule) != line.ValidationRule {
			s.logger.Debug("ignoring client supplied rule", "quest_id", quest.ID, "line_id", line.ID,
				"client_rule", answers[i].ValidationRule, "stored_rule", line.ValidationRule)
		}

		v, err := evaluator.Evaluate(ctx, LineInput{
			Index:  i,
			Line:   line,
			Value:  values[i],
			Values: values,
			Caller: caller,
		})
		if err != nil {
			return domain.QuestOutcome{}, fmt.Errorf("evaluate line %d: %w", line.ID, err)
		}

		result := domain.LineResult{
			LineID:         line.ID,
			IsValid:        v.Valid,
			ValidationRule: line.ValidationRule,
			InputValue:     values[i],
		}
		if !v.Valid {
			msg := v.Message
			result.ErrorMessage = &msg
			outcome.Success = false
		}
		outcome.Results = append(outcome.Results, result)
	}

	if outcome.Success {
		outcome.TotalPoints = quest.TotalPoints()
		if err := s.CommitScore(ctx, caller.UID, quest.ID, outcome.TotalPoints); err != nil {
			return domain.QuestOutcome{}, err
		}
	}

	s.logger.Info("quest attempt validated",
		"quest_id", quest.ID, "uid", caller.UID, "success", outcome.Success, "points", outcome.TotalPoints)
	return outcome, nil
}

// CommitScore upserts the points for (uid, questID) and then clears the uid's completed-quest cache.
// A storage failure is returned; a cache failure after a durable write is only logged.
func (s *QuestService) CommitScore(ctx context.Context, uid string, questID int64, points int) error {
	if err := s.scores.UpsertScore(ctx, domain.ScoreRecord{
		UID:       uid,
		QuestID:   questID,
		Points:    points,
		UpdatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("commit score: %w", err)
	}

	if err := s.completed.Invalidate(ctx, uid); err != nil {
		s.logger.Error("completed cache invalidation failed", "uid", uid, "error", err)
	}
	s.logger.Info("score committed", "uid", uid, "quest_id", questID, "points", points)

	if s.notifier != nil {
		s.notifier.ScoresChanged(ctx)
	}
	return nil
}

// caller resolves the principal to the current registrant record.
func (s *QuestService) caller(ctx context.Context, principal *domain.Principal) (domain.Registrant, error) {
	if principal == nil || principal.UID == "" {
		return domain.Registrant{}, domain.ErrNotAuthenticated
	}
	reg, err := s.registrants.FindByUID(ctx, principal.UID)
	if errors.Is(err, domain.ErrRegistrantNotFound) {
		return domain.Registrant{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Registrant{}, fmt.Errorf("load game user: %w", err)
	}
	return reg, nil
}

// memoLookup caches registrant lookups for the lifetime of one submission.
type memoLookup struct {
	next   RegistrantLookup
	byName map[string]memoEntry
	byUID  map[string]bool
}

type memoEntry struct {
	reg domain.Registrant
	err error
}

func newMemoLookup(next RegistrantLookup) *memoLookup {
	return &memoLookup{
		next:   next,
		byName: make(map[string]memoEntry),
		byUID:  make(map[string]bool),
	}
}

func (m *memoLookup) FindByName(ctx context.Context, name string) (domain.Registrant, error) {
	if e, ok := m.byName[name]; ok {
		return e.reg, e.err
	}
	reg, err := m.next.FindByName(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrRegistrantNotFound) {
		return reg, err
	}
	m.byName[name] = memoEntry{reg: reg, err: err}
	return reg, err
}

func (m *memoLookup) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	if ok, seen := m.byUID[uid]; seen {
		return ok, nil
	}
	ok, err := m.next.ExistsByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	m.byUID[uid] = ok
	return ok, nil
}
