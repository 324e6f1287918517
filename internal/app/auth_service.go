package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService handles UID login into the game and turns tokens back into principals.
// Sessions carry only the uid; registrant fields are always re-read from storage.
type AuthService struct {
	registrants RegistrantStore
	sessions    SessionStore
	secret      []byte
	ttl         time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewAuthService(registrants RegistrantStore, sessions SessionStore, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		registrants: registrants,
		sessions:    sessions,
		secret:      []byte(secret),
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

type sessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// LoginResult is returned to the client after a successful game login.
type LoginResult struct {
	Token      string            `json:"token"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	Registrant domain.Registrant `json:"registrant"`
}

// Login opens a game session for the registrant owning uid.
func (a *AuthService) Login(ctx context.Context, uid string) (LoginResult, error) {
	uid = strings.ToUpper(strings.TrimSpace(uid))
	if uid == "" {
		return LoginResult{}, domain.FieldErrors{"uid": "The uid field is required."}
	}
	reg, err := a.registrants.FindByUID(ctx, uid)
	if errors.Is(err, domain.ErrRegistrantNotFound) {
		return LoginResult{}, domain.FieldErrors{"uid": "Invalid UID. Please try again."}
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("login lookup: %w", err)
	}

	now := a.now()
	session := domain.GameSession{
		ID:        uuid.NewString(),
		UID:       reg.UID,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.sessions.Save(ctx, session); err != nil {
		return LoginResult{}, fmt.Errorf("save session: %w", err)
	}

	claims := sessionClaims{
		UID: session.UID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	a.logger.Info("game login", "uid", reg.UID, "session_id", session.ID)
	return LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Registrant: reg}, nil
}

// Authenticate verifies a token and checks the session behind it is still live.
func (a *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid || claims.ID == "" || claims.UID == "" {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}

	session, err := a.sessions.Get(ctx, claims.ID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Principal{}, fmt.Errorf("load session: %w", err)
	}
	if session.UID != claims.UID || !session.ExpiresAt.After(a.now()) {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	return domain.Principal{UID: session.UID, SessionID: session.ID}, nil
}

// Logout revokes the session. Unknown sessions are not an error.
func (a *AuthService) Logout(ctx context.Context, principal domain.Principal) error {
	if err := a.sessions.Delete(ctx, principal.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	a.logger.Info("game logout", "uid", principal.UID, "session_id", principal.SessionID)
	return nil
}

// Current re-fetches the registrant behind a principal.
func (a *AuthService) Current(ctx context.Context, principal *domain.Principal) (domain.Registrant, error) {
	if principal == nil {
		return domain.Registrant{}, domain.ErrNotAuthenticated
	}
	reg, err := a.registrants.FindByUID(ctx, principal.UID)
	if errors.Is(err, domain.ErrRegistrantNotFound) {
		return domain.Registrant{}, domain.ErrNotAuthenticated
	}
	return reg, err
}
