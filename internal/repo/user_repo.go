package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// ErrUsernameTaken is returned when the username claim already exists.
var ErrUsernameTaken = errors.New("username already taken")

// UserRepo provides user persistence.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, username, displayName, passwordHash string) (domain.User, error)
}

// DocUserRepo implements UserRepo on the document store. Usernames are
// claimed through usernames/{name} so uniqueness needs no index.
type DocUserRepo struct {
	store *docstore.Store
}

// NewDocUserRepo returns a new DocUserRepo.
func NewDocUserRepo(store *docstore.Store) *DocUserRepo {
	return &DocUserRepo{store: store}
}

type usernameClaim struct {
	UserID string `json:"user_id"`
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// GetByUsername returns the user by username.
func (r *DocUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	doc, err := r.store.Get(ctx, usernamesCollection, usernameKey(username))
	if err != nil {
		return domain.User{}, err
	}
	var claim usernameClaim
	if err := doc.Decode(&claim); err != nil {
		return domain.User{}, err
	}
	return r.GetByID(ctx, claim.UserID)
}

func (r *DocUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	doc, err := r.store.Get(ctx, usersCollection, id)
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := doc.Decode(&u); err != nil {
		return domain.User{}, err
	}
	u.ID = doc.ID
	return u, nil
}

// Create claims the username and inserts the user.
func (r *DocUserRepo) Create(ctx context.Context, username, displayName, passwordHash string) (domain.User, error) {
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.store.Create(ctx, usernamesCollection, usernameKey(username), usernameClaim{UserID: u.ID})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return domain.User{}, ErrUsernameTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("claim username: %w", err)
	}
	if _, err := r.store.Create(ctx, usersCollection, u.ID, u); err != nil {
		_ = r.store.Delete(ctx, usernamesCollection, usernameKey(username))
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
