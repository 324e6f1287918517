package sqlstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"levelup-sidequest/internal/app"
	"levelup-sidequest/internal/domain"
	"levelup-sidequest/internal/infra/memory"
	"levelup-sidequest/internal/infra/sqlstore"
	"levelup-sidequest/internal/infra/sqlstore/migrations"

	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func day(s string) *time.Time {
	t, err := time.Parse(domain.BirthdayLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestRegistrantStore(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewRegistrantStore(newTestDB(t))
	inviter := "Kuya Jigs"

	first := &domain.Registrant{Name: "Jane", Email: "jane@example.com", Birthday: day("2000-05-01"), Age: 25, InvitedBy: &inviter, UID: "LVLUPJANE"}
	second := &domain.Registrant{Name: "Jane", Email: "jane2@example.com", Age: 20}
	for _, r := range []*domain.Registrant{first, second} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
		if r.ID == 0 {
			t.Fatalf("expected generated id")
		}
	}

	got, err := store.FindByName(ctx, "Jane")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if got.ID != first.ID || got.BirthdayString() != "2000-05-01" || got.InvitedBy == nil || *got.InvitedBy != inviter {
		t.Fatalf("expected earliest Jane with details, got %+v", got)
	}
	if _, err := store.FindByName(ctx, "Nobody"); !errors.Is(err, domain.ErrRegistrantNotFound) {
		t.Fatalf("expected ErrRegistrantNotFound, got %v", err)
	}

	byUID, err := store.FindByUID(ctx, "LVLUPJANE")
	if err != nil || byUID.Email != "jane@example.com" {
		t.Fatalf("find by uid: %+v err=%v", byUID, err)
	}
	if ok, _ := store.ExistsByUID(ctx, "LVLUPNOPE"); ok {
		t.Fatalf("expected unknown uid to be absent")
	}
	if ok, _ := store.ExistsByEmail(ctx, "jane2@example.com"); !ok {
		t.Fatalf("expected email to exist")
	}
	if err := store.Create(ctx, &domain.Registrant{Name: "Dup", Email: "jane@example.com"}); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	missing, err := store.ListMissingUID(ctx)
	if err != nil || len(missing) != 1 || missing[0].ID != second.ID {
		t.Fatalf("expected second registrant without uid, got %+v err=%v", missing, err)
	}
	if err := store.AssignUID(ctx, second.ID, "LVLUP0002"); err != nil {
		t.Fatalf("assign uid: %v", err)
	}
	if err := store.AssignUID(ctx, 999, "LVLUP0003"); !errors.Is(err, domain.ErrRegistrantNotFound) {
		t.Fatalf("expected ErrRegistrantNotFound, got %v", err)
	}
	if ok, _ := store.ExistsByUID(ctx, "LVLUP0002"); !ok {
		t.Fatalf("expected assigned uid to exist")
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("expected 2 registrants, got %d", n)
	}
}

func TestQuestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewQuestStore(newTestDB(t))
	answer := "JIGGER"
	ref := 0
	quest := &domain.Quest{Question: "Meet someone", Lines: []domain.QuestLine{
		{InputType: "text", Placeholder: "Name", ValidationRule: domain.RuleNameExists, Points: 10},
		{InputType: "date", ValidationRule: domain.RuleBirthdayIsCorrect, NameRef: &ref, Points: 10},
		{InputType: "text", IsQuestion: true, Answer: &answer, ValidationRule: domain.RuleRequired, Points: 5},
	}}
	if err := store.CreateQuest(ctx, quest); err != nil {
		t.Fatalf("create quest: %v", err)
	}
	if quest.ID == 0 {
		t.Fatalf("expected generated quest id")
	}

	loaded, err := store.LoadQuest(ctx, quest.ID)
	if err != nil {
		t.Fatalf("load quest: %v", err)
	}
	if loaded.Question != "Meet someone" || len(loaded.Lines) != 3 {
		t.Fatalf("unexpected quest %+v", loaded)
	}
	for i, l := range loaded.Lines {
		if l.Position != i {
			t.Fatalf("expected lines ordered by position, got %+v", loaded.Lines)
		}
	}
	if loaded.Lines[1].NameRef == nil || *loaded.Lines[1].NameRef != 0 {
		t.Fatalf("expected name reference persisted, got %+v", loaded.Lines[1])
	}
	if loaded.Lines[2].Answer == nil || *loaded.Lines[2].Answer != "JIGGER" || !loaded.Lines[2].IsQuestion {
		t.Fatalf("expected answer persisted, got %+v", loaded.Lines[2])
	}
	if loaded.TotalPoints() != 25 {
		t.Fatalf("expected 25 points, got %d", loaded.TotalPoints())
	}

	all, err := store.LoadQuests(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("load quests: %+v err=%v", all, err)
	}

	if err := store.DeleteQuest(ctx, quest.ID); err != nil {
		t.Fatalf("delete quest: %v", err)
	}
	if _, err := store.LoadQuest(ctx, quest.ID); !errors.Is(err, domain.ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound, got %v", err)
	}
	if err := store.DeleteQuest(ctx, quest.ID); !errors.Is(err, domain.ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound on second delete, got %v", err)
	}
}

func TestRegistrantSearch(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewRegistrantStore(newTestDB(t))
	inviter := "Kuya Jigs"
	base := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)
	regs := []*domain.Registrant{
		{Name: "Jane Cruz", Email: "jane@example.com", InvitedBy: &inviter, CreatedAt: base},
		{Name: "Mark Reyes", Email: "mark@example.com", Salvationist: true, CreatedAt: base.Add(time.Hour)},
		{Name: "Ana Jigsaw", Email: "ana@example.com", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range regs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, total, err := store.Search(ctx, "", 1, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 || len(all) != 2 || all[0].Name != "Ana Jigsaw" || all[1].Name != "Mark Reyes" {
		t.Fatalf("expected newest two of three, got total=%d %+v", total, all)
	}

	jigs, total, err := store.Search(ctx, "JIGS", 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 || len(jigs) != 2 || jigs[0].Name != "Ana Jigsaw" || jigs[1].Name != "Jane Cruz" {
		t.Fatalf("expected name and inviter matches, got total=%d %+v", total, jigs)
	}

	yes, total, err := store.Search(ctx, "yes", 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || yes[0].Name != "Mark Reyes" {
		t.Fatalf("expected the salvationist only, got total=%d %+v", total, yes)
	}

	last, _, err := store.Search(ctx, "", 2, 2)
	if err != nil || len(last) != 1 || last[0].Name != "Jane Cruz" {
		t.Fatalf("expected oldest on page 2, got %+v err=%v", last, err)
	}
}

func TestQuestStoreUpdateReplacesLines(t *testing.T) {
	ctx := context.Background()
	store := sqlstore.NewQuestStore(newTestDB(t))
	quest := &domain.Quest{Question: "Old question", Lines: []domain.QuestLine{
		{InputType: "text", ValidationRule: domain.RuleRequired, Points: 5},
		{InputType: "text", ValidationRule: domain.RuleCode, Points: 5},
	}}
	if err := store.CreateQuest(ctx, quest); err != nil {
		t.Fatalf("create quest: %v", err)
	}

	answer := "AMEN"
	update := &domain.Quest{ID: quest.ID, Question: "New question", Lines: []domain.QuestLine{
		{InputType: "text", IsQuestion: true, Answer: &answer, ValidationRule: domain.RuleRequired, Points: 15},
	}}
	if err := store.UpdateQuest(ctx, update); err != nil {
		t.Fatalf("update quest: %v", err)
	}
	if update.CreatedAt.IsZero() || update.Lines[0].ID == 0 {
		t.Fatalf("expected created_at kept and line ids filled, got %+v", update)
	}

	loaded, err := store.LoadQuest(ctx, quest.ID)
	if err != nil {
		t.Fatalf("load quest: %v", err)
	}
	if loaded.Question != "New question" || len(loaded.Lines) != 1 || loaded.TotalPoints() != 15 {
		t.Fatalf("expected replaced quest, got %+v", loaded)
	}

	missing := &domain.Quest{ID: quest.ID + 100, Question: "x", Lines: update.Lines}
	if err := store.UpdateQuest(ctx, missing); !errors.Is(err, domain.ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound, got %v", err)
	}
}

func TestScoreStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	registrants := sqlstore.NewRegistrantStore(db)
	scores := sqlstore.NewScoreStore(db)

	for _, r := range []*domain.Registrant{
		{Name: "Ana", Email: "a@example.com", UID: "LVLUPAAAA"},
		{Name: "Ben", Email: "b@example.com", UID: "LVLUPBBBB"},
	} {
		if err := registrants.Create(ctx, r); err != nil {
			t.Fatalf("create registrant: %v", err)
		}
	}

	writes := []domain.ScoreRecord{
		{UID: "LVLUPAAAA", QuestID: 1, Points: 10},
		{UID: "LVLUPAAAA", QuestID: 1, Points: 30},
		{UID: "LVLUPAAAA", QuestID: 2, Points: 5},
		{UID: "LVLUPBBBB", QuestID: 1, Points: 20},
		{UID: "LVLUPGONE", QuestID: 1, Points: 99},
	}
	for _, w := range writes {
		if err := scores.UpsertScore(ctx, w); err != nil {
			t.Fatalf("upsert %+v: %v", w, err)
		}
	}

	total, err := scores.TotalPoints(ctx, "LVLUPAAAA")
	if err != nil || total != 35 {
		t.Fatalf("expected 35 points after replace, got %d err=%v", total, err)
	}
	if total, _ := scores.TotalPoints(ctx, "LVLUPNONE"); total != 0 {
		t.Fatalf("expected zero for unknown uid, got %d", total)
	}
	ids, err := scores.CompletedQuestIDs(ctx, "LVLUPAAAA")
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected quests [1 2], got %v err=%v", ids, err)
	}

	entries, err := scores.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "Ana" || entries[0].TotalPoints != 35 || entries[1].Name != "Ben" {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func TestQuestServiceOnSQL(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	registrants := sqlstore.NewRegistrantStore(db)
	quests := sqlstore.NewQuestStore(db)
	scores := sqlstore.NewScoreStore(db)

	inviter := "Kuya Jigs"
	for _, r := range []*domain.Registrant{
		{Name: "Jane", Email: "jane@example.com", UID: "LVLUPJANE", Birthday: day("2000-05-01")},
		{Name: "Player One", Email: "p1@example.com", UID: "LVLUPP001", Birthday: day("2001-08-09"), InvitedBy: &inviter},
	} {
		if err := registrants.Create(ctx, r); err != nil {
			t.Fatalf("create registrant: %v", err)
		}
	}
	quest := &domain.Quest{Question: "Meet someone", Lines: []domain.QuestLine{
		{InputType: "text", ValidationRule: domain.RuleNameExists, Points: 10},
		{InputType: "date", ValidationRule: domain.RuleBirthdayIsCorrect, Points: 15},
	}}
	if err := quests.CreateQuest(ctx, quest); err != nil {
		t.Fatalf("create quest: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := app.NewQuestService(memory.NewQuestRepository(quests, time.Minute), registrants, scores, memory.NewCompletedCache(time.Minute), logger)
	principal := &domain.Principal{UID: "LVLUPP001"}

	outcome, err := svc.ValidateQuest(ctx, quest.ID, []domain.SubmittedAnswer{{Value: "Jane"}, {Value: "2000-05-01"}}, principal)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !outcome.Success || outcome.TotalPoints != 25 {
		t.Fatalf("expected success with 25 points, got %+v", outcome)
	}
	board, err := svc.Board(ctx, principal)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if board.TotalPoints != 25 || len(board.CompletedQuestIDs) != 1 || board.CompletedQuestIDs[0] != quest.ID {
		t.Fatalf("unexpected board %+v", board)
	}
}
