package sqlstore

import (
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/uptrace/bun"
)

type registrantModel struct {
	bun.BaseModel `bun:"table:registrants,alias:r"`

	ID           int64      `bun:"id,pk,autoincrement"`
	Name         string     `bun:"name,notnull"`
	Email        string     `bun:"email,notnull,unique"`
	Birthday     *time.Time `bun:"birthday,type:date"`
	Age          int        `bun:"age,notnull"`
	InvitedBy    *string    `bun:"invited_by"`
	Salvationist bool       `bun:"salvationist,notnull"`
	MobileNumber *string    `bun:"mobile_number"`
	UID          *string    `bun:"uid,unique"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
}

func (m registrantModel) toDomain() domain.Registrant {
	r := domain.Registrant{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Age:          m.Age,
		InvitedBy:    m.InvitedBy,
		Salvationist: m.Salvationist,
		MobileNumber: m.MobileNumber,
		CreatedAt:    m.CreatedAt,
	}
	if m.Birthday != nil {
		b := time.Date(m.Birthday.Year(), m.Birthday.Month(), m.Birthday.Day(), 0, 0, 0, 0, time.UTC)
		r.Birthday = &b
	}
	if m.UID != nil {
		r.UID = *m.UID
	}
	return r
}

func registrantFromDomain(r domain.Registrant) registrantModel {
	m := registrantModel{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Birthday:     r.Birthday,
		Age:          r.Age,
		InvitedBy:    r.InvitedBy,
		Salvationist: r.Salvationist,
		MobileNumber: r.MobileNumber,
		CreatedAt:    r.CreatedAt,
	}
	if r.UID != "" {
		uid := r.UID
		m.UID = &uid
	}
	return m
}

type questModel struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID        int64             `bun:"id,pk,autoincrement"`
	Question  string            `bun:"question,notnull"`
	CreatedAt time.Time         `bun:"created_at,notnull"`
	Lines     []*questLineModel `bun:"rel:has-many,join:id=quest_id"`
}

type questLineModel struct {
	bun.BaseModel `bun:"table:quest_lines,alias:ql"`

	ID             int64   `bun:"id,pk,autoincrement"`
	QuestID        int64   `bun:"quest_id,notnull"`
	Position       int     `bun:"position,notnull"`
	InputType      string  `bun:"input_type,notnull"`
	Placeholder    string  `bun:"placeholder,notnull"`
	IsQuestion     bool    `bun:"is_question,notnull"`
	Answer         *string `bun:"answer"`
	ValidationRule string  `bun:"validation_rule,notnull"`
	NameRef        *int    `bun:"name_ref"`
	Points         int     `bun:"points,notnull"`
}

func (m questModel) toDomain() domain.Quest {
	q := domain.Quest{ID: m.ID, Question: m.Question, CreatedAt: m.CreatedAt}
	q.Lines = make([]domain.QuestLine, 0, len(m.Lines))
	for _, l := range m.Lines {
		q.Lines = append(q.Lines, domain.QuestLine{
			ID:             l.ID,
			QuestID:        l.QuestID,
			Position:       l.Position,
			InputType:      l.InputType,
			Placeholder:    l.Placeholder,
			IsQuestion:     l.IsQuestion,
			Answer:         l.Answer,
			ValidationRule: domain.Rule(l.ValidationRule),
			NameRef:        l.NameRef,
			Points:         l.Points,
		})
	}
	return q
}

type scoreModel struct {
	bun.BaseModel `bun:"table:quest_scores,alias:qs"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UID       string    `bun:"uid,notnull,unique:quest_scores_uid_quest_id"`
	QuestID   int64     `bun:"quest_id,notnull,unique:quest_scores_uid_quest_id"`
	Points    int       `bun:"points,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
