package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps game sessions in Redis so every instance sees the same logins.
// Keys expire with the session: SET sidequest:session:{id} {json} PXAT expires_at
type SessionStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, clock: time.Now}
}

func (s *SessionStore) Save(ctx context.Context, session domain.GameSession) error {
	ttl := session.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return fmt.Errorf("save session %s: already expired", session.ID)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.GameSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if isNil(err) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var session domain.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.GameSession{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if !session.ExpiresAt.After(s.clock()) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) key(sessionID string) string {
	return "sidequest:session:" + sessionID
}
