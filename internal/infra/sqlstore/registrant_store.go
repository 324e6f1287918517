package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/uptrace/bun"
)

// RegistrantStore implements app.RegistrantRepository on the registrants table.
type RegistrantStore struct {
	db *bun.DB
}

func NewRegistrantStore(db *bun.DB) *RegistrantStore {
	return &RegistrantStore{db: db}
}

// Create inserts reg and sets its ID. A registrant that already has an ID is updated in place.
func (s *RegistrantStore) Create(ctx context.Context, reg *domain.Registrant) error {
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	m := registrantFromDomain(*reg)

	var err error
	if m.ID == 0 {
		_, err = s.db.NewInsert().Model(&m).Exec(ctx)
	} else {
		_, err = s.db.NewUpdate().Model(&m).WherePK().Exec(ctx)
	}
	if isUniqueViolation(err) && strings.Contains(err.Error(), "email") {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("save registrant: %w", err)
	}
	reg.ID = m.ID
	return nil
}

// FindByName returns the earliest registrant carrying the name; names are not unique.
func (s *RegistrantStore) FindByName(ctx context.Context, name string) (domain.Registrant, error) {
	return s.first(ctx, "r.name = ?", name)
}

func (s *RegistrantStore) FindByUID(ctx context.Context, uid string) (domain.Registrant, error) {
	if uid == "" {
		return domain.Registrant{}, domain.ErrRegistrantNotFound
	}
	return s.first(ctx, "r.uid = ?", uid)
}

func (s *RegistrantStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, nil
	}
	ok, err := s.db.NewSelect().Model((*registrantModel)(nil)).Where("r.uid = ?", uid).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check uid: %w", err)
	}
	return ok, nil
}

func (s *RegistrantStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ok, err := s.db.NewSelect().Model((*registrantModel)(nil)).Where("r.email = ?", email).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return ok, nil
}

func (s *RegistrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*registrantModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count registrants: %w", err)
	}
	return n, nil
}

func (s *RegistrantStore) ListMissingUID(ctx context.Context) ([]domain.Registrant, error) {
	var rows []registrantModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("r.uid IS NULL OR r.uid = ''").
		Order("r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrants without uid: %w", err)
	}
	out := make([]domain.Registrant, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *RegistrantStore) AssignUID(ctx context.Context, id int64, uid string) error {
	res, err := s.db.NewUpdate().
		Model((*registrantModel)(nil)).
		Set("uid = ?", uid).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("assign uid: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRegistrantNotFound
	}
	return nil
}

func (s *RegistrantStore) Search(ctx context.Context, query string, page, perPage int) ([]domain.Registrant, int, error) {
	var rows []registrantModel
	q := s.db.NewSelect().Model(&rows)
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(r.name) LIKE ?", pattern).
				WhereOr("LOWER(r.email) LIKE ?", pattern).
				WhereOr("LOWER(r.invited_by) LIKE ?", pattern).
				WhereOr("(CASE WHEN r.salvationist THEN 'yes' ELSE 'no' END) LIKE ?", pattern)
		})
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count registrants: %w", err)
	}
	err = q.Order("r.created_at DESC", "r.id DESC").
		Limit(perPage).
		Offset(domain.Offset(page, perPage)).
		Scan(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("search registrants: %w", err)
	}
	out := make([]domain.Registrant, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, total, nil
}

func (s *RegistrantStore) first(ctx context.Context, where string, arg interface{}) (domain.Registrant, error) {
	var m registrantModel
	err := s.db.NewSelect().Model(&m).Where(where, arg).Order("r.id ASC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Registrant{}, domain.ErrRegistrantNotFound
	}
	if err != nil {
		return domain.Registrant{}, fmt.Errorf("find registrant: %w", err)
	}
	return m.toDomain(), nil
}
