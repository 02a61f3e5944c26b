package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
)

// Store manages sessions in Redis. Each session holds the signed-in identity.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// TTL is how long a session lives after creation.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores a new session for id and returns its ID.
func (s *Store) Create(ctx context.Context, id domain.Identity) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sid, b, s.ttl).Err(); err != nil {
		return "", err
	}
	return sid, nil
}

// Identity returns the identity bound to the session. ok is false when the
// session does not exist or has expired.
func (s *Store) Identity(ctx context.Context, sid string) (id domain.Identity, ok bool, err error) {
	b, err := s.rdb.Get(ctx, sessionKeyPrefix+sid).Bytes()
	if err == redis.Nil {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	if err := json.Unmarshal(b, &id); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode session: %w", err)
	}
	return id, id.ID != "", nil
}

// Delete removes a session by ID.
func (s *Store) Delete(ctx context.Context, sid string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sid).Err()
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
