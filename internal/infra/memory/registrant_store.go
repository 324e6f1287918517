package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"levelup-sidequest/internal/domain"
)

// RegistrantStore is an in-memory implementation of app.RegistrantRepository.
type RegistrantStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]domain.Registrant
}

func NewRegistrantStore(seed ...domain.Registrant) *RegistrantStore {
	s := &RegistrantStore{byID: make(map[int64]domain.Registrant)}
	for _, r := range seed {
		_ = s.Create(context.Background(), &r)
	}
	return s
}

func (s *RegistrantStore) Create(_ context.Context, reg *domain.Registrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ID != reg.ID && existing.Email != "" && existing.Email == reg.Email {
			return domain.ErrDuplicateEmail
		}
	}
	if reg.ID == 0 {
		s.nextID++
		reg.ID = s.nextID
	} else if reg.ID > s.nextID {
		s.nextID = reg.ID
	}
	s.byID[reg.ID] = *reg
	return nil
}

// FindByName returns the earliest registrant carrying the name; names are not unique.
func (s *RegistrantStore) FindByName(_ context.Context, name string) (domain.Registrant, error) {
	return s.first(func(r domain.Registrant) bool { return r.Name == name })
}

func (s *RegistrantStore) FindByUID(_ context.Context, uid string) (domain.Registrant, error) {
	if uid == "" {
		return domain.Registrant{}, domain.ErrRegistrantNotFound
	}
	return s.first(func(r domain.Registrant) bool { return r.UID == uid })
}

func (s *RegistrantStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	_, err := s.FindByUID(ctx, uid)
	return err == nil, nil
}

func (s *RegistrantStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := s.first(func(r domain.Registrant) bool { return r.Email == email })
	return err == nil, nil
}

func (s *RegistrantStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *RegistrantStore) ListMissingUID(_ context.Context) ([]domain.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Registrant
	for _, r := range s.byID {
		if r.UID == "" {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RegistrantStore) AssignUID(_ context.Context, id int64, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return domain.ErrRegistrantNotFound
	}
	r.UID = uid
	s.byID[id] = r
	return nil
}

func (s *RegistrantStore) Search(_ context.Context, query string, page, perPage int) ([]domain.Registrant, int, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	var matched []domain.Registrant
	for _, r := range s.byID {
		if query == "" || registrantMatches(r, query) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	p := domain.Paginate(matched, page, perPage)
	return p.Data, len(matched), nil
}

func registrantMatches(r domain.Registrant, query string) bool {
	fields := []string{r.Name, r.Email, "no"}
	if r.InvitedBy != nil {
		fields = append(fields, *r.InvitedBy)
	}
	if r.Salvationist {
		fields[2] = "yes"
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func (s *RegistrantStore) first(match func(domain.Registrant) bool) (domain.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found domain.Registrant
		ok    bool
	)
	for _, r := range s.byID {
		if match(r) && (!ok || r.ID < found.ID) {
			found, ok = r, true
		}
	}
	if !ok {
		return domain.Registrant{}, domain.ErrRegistrantNotFound
	}
	return found, nil
}
