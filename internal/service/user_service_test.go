package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(repo.NewDocUserRepo(docstore.New(docstore.NewMemory(), nil, nil))).WithCost(bcrypt.MinCost)

	u, err := svc.Register(ctx, "alice", "Alice", "s3cret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "Alice", "", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.Register(ctx, " ", "", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blank username, got %v", err)
	}

	got, err := svc.ValidateCredentials(ctx, "alice", "s3cret")
	if err != nil || got.ID != u.ID {
		t.Fatalf("ValidateCredentials: %+v %v", got, err)
	}
	for _, tc := range []struct{ user, pass string }{{"alice", "wrong"}, {"bob", "s3cret"}, {"", ""}} {
		if _, err := svc.ValidateCredentials(ctx, tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s/%s: expected ErrInvalidCredentials, got %v", tc.user, tc.pass, err)
		}
	}

	id, err := svc.Lookup(ctx, u.ID)
	if err != nil || id.DisplayName != "Alice" {
		t.Fatalf("Lookup: %+v %v", id, err)
	}
}
