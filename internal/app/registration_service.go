package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"levelup-sidequest/internal/domain"
)

const (
	uidPrefix   = "LVLUP"
	uidAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	uidSuffix   = 4
)

// RegistrationInput is the public registration form.
type RegistrationInput struct {
	Name         string  `json:"name" validate:"required,min=2,max=255"`
	Email        string  `json:"email" validate:"required,max=255,email"`
	Birthday     string  `json:"birthday" validate:"required,datetime=2006-01-02"`
	Age          int     `json:"age" validate:"min=13,max=35"`
	InvitedBy    *string `json:"invited_by" validate:"required_if=Salvationist no,omitempty,min=2,max=255"`
	Salvationist string  `json:"salvationist" validate:"required,oneof=yes no"`
	MobileNumber *string `json:"mobile_number" validate:"required_if=Salvationist no,omitempty,max=15,ph_mobile"`
}

// RegistrationService creates registrants and owns UID assignment.
type RegistrationService struct {
	registrants RegistrantRepository
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
	validate    *validator.Validate

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRegistrationService(registrants RegistrantRepository, logger *slog.Logger) *RegistrationService {
	return NewRegistrationServiceWithRand(registrants, logger, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewRegistrationServiceWithRand is test-only for deterministic UIDs and dates.
func NewRegistrationServiceWithRand(registrants RegistrantRepository, logger *slog.Logger, rnd *rand.Rand, now func() time.Time) *RegistrationService {
	return &RegistrationService{
		registrants: registrants,
		logger:      logger,
		now:         now,
		maxAttempts: 64,
		validate:    newValidator(),
		rnd:         rnd,
	}
}

// Register validates the form, assigns a fresh UID and stores the registrant.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (domain.Registrant, error) {
	reg, err := s.check(in)
	if err != nil {
		return domain.Registrant{}, err
	}

	exists, err := s.registrants.ExistsByEmail(ctx, reg.Email)
	if err != nil {
		return domain.Registrant{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Registrant{}, domain.FieldErrors{"email": "The email has already been taken."}
	}

	uid, err := s.GenerateUID(ctx)
	if err != nil {
		return domain.Registrant{}, err
	}
	reg.UID = uid
	reg.CreatedAt = s.now()

	if err := s.registrants.Create(ctx, &reg); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return domain.Registrant{}, domain.FieldErrors{"email": "The email has already been taken."}
		}
		return domain.Registrant{}, fmt.Errorf("create registrant: %w", err)
	}
	s.logger.Info("registrant created", "id", reg.ID, "uid", reg.UID)
	return reg, nil
}

// GenerateUID draws LVLUP-prefixed codes until one is unused.
func (s *RegistrationService) GenerateUID(ctx context.Context) (string, error) {
	for i := 0; i < s.maxAttempts; i++ {
		uid := s.randomUID()
		taken, err := s.registrants.ExistsByUID(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("check uid: %w", err)
		}
		if !taken {
			return uid, nil
		}
	}
	return "", domain.ErrUIDExhausted
}

// BackfillUIDs assigns UIDs to registrants stored without one and reports how many were updated.
func (s *RegistrationService) BackfillUIDs(ctx context.Context) (int, error) {
	missing, err := s.registrants.ListMissingUID(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrants without uid: %w", err)
	}
	for i, reg := range missing {
		uid, err := s.GenerateUID(ctx)
		if err != nil {
			return i, err
		}
		if err := s.registrants.AssignUID(ctx, reg.ID, uid); err != nil {
			return i, fmt.Errorf("assign uid to %d: %w", reg.ID, err)
		}
		s.logger.Debug("uid assigned", "id", reg.ID, "uid", uid)
	}
	s.logger.Info("uid backfill finished", "updated", len(missing))
	return len(missing), nil
}

// EmailTaken reports whether the email is already registered.
func (s *RegistrationService) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.registrants.ExistsByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Count returns the number of registrants.
func (s *RegistrationService) Count(ctx context.Context) (int, error) {
	return s.registrants.Count(ctx)
}

// Search lists registrants newest first, filtered by query and cut to one page.
func (s *RegistrationService) Search(ctx context.Context, query string, page, perPage int) (domain.Page[domain.Registrant], error) {
	page, perPage = domain.PageBounds(page, perPage)
	regs, total, err := s.registrants.Search(ctx, query, page, perPage)
	if err != nil {
		return domain.Page[domain.Registrant]{}, fmt.Errorf("search registrants: %w", err)
	}
	return domain.NewPage(regs, page, perPage, total), nil
}

// ByUID looks a registrant up by UID.
func (s *RegistrationService) ByUID(ctx context.Context, uid string) (domain.Registrant, error) {
	return s.registrants.FindByUID(ctx, strings.ToUpper(strings.TrimSpace(uid)))
}

func (s *RegistrationService) randomUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	b.WriteString(uidPrefix)
	for i := 0; i < uidSuffix; i++ {
		b.WriteByte(uidAlphabet[s.rnd.Intn(len(uidAlphabet))])
	}
	return b.String()
}

// check runs the struct tags on the trimmed form, then the date checks tags cannot express.
func (s *RegistrationService) check(in RegistrationInput) (domain.Registrant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Birthday = strings.TrimSpace(in.Birthday)
	in.InvitedBy = trimmedOrNil(in.InvitedBy)
	in.MobileNumber = trimmedOrNil(in.MobileNumber)

	errs := domain.FieldErrors{}
	if err := s.validate.Struct(in); err != nil {
		mapped := fieldErrors(err)
		fields, ok := mapped.(domain.FieldErrors)
		if !ok {
			return domain.Registrant{}, fmt.Errorf("validate registration: %w", mapped)
		}
		errs = fields
	}

	var birthday *time.Time
	if _, bad := errs["birthday"]; !bad {
		today := s.now()
		b, _ := time.Parse(domain.BirthdayLayout, in.Birthday)
		if !b.Before(today.AddDate(-12, 0, 0)) || !b.After(today.AddDate(-120, 0, 0)) {
			errs["birthday"] = "The birthday is outside the allowed range."
		} else {
			birthday = &b
			if _, bad := errs["age"]; !bad {
				if diff := ageOn(b, today) - in.Age; diff > 1 || diff < -1 {
					errs["age"] = "Age does not match your birthday."
				}
			}
		}
	}

	if len(errs) > 0 {
		return domain.Registrant{}, errs
	}
	return domain.Registrant{
		Name:         in.Name,
		Email:        in.Email,
		Birthday:     birthday,
		Age:          in.Age,
		InvitedBy:    in.InvitedBy,
		Salvationist: in.Salvationist == "yes",
		MobileNumber: in.MobileNumber,
	}, nil
}

func ageOn(birthday, day time.Time) int {
	age := day.Year() - birthday.Year()
	if day.Month() < birthday.Month() || (day.Month() == birthday.Month() && day.Day() < birthday.Day()) {
		age--
	}
	return age
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
