package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// MarkerRepo stores reminder markers under users/{id}/alerts_history.
type MarkerRepo struct {
	store *docstore.Store
}

func NewMarkerRepo(store *docstore.Store) *MarkerRepo {
	return &MarkerRepo{store: store}
}

func (r *MarkerRepo) Exists(ctx context.Context, recipient, id string) (bool, error) {
	_, err := r.store.Get(ctx, alertsCollection(recipient), id)
	if notFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get marker: %w", err)
	}
	return true, nil
}

// Put writes the marker once. A marker that already exists is not an error.
func (r *MarkerRepo) Put(ctx context.Context, m domain.ReminderMarker) error {
	_, err := r.store.Create(ctx, alertsCollection(m.Recipient), m.ID, m)
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return fmt.Errorf("put marker: %w", err)
	}
	return nil
}
