package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

type EpicRepo struct {
	store *docstore.Store
}

func NewEpicRepo(store *docstore.Store) *EpicRepo {
	return &EpicRepo{store: store}
}

func (r *EpicRepo) Create(ctx context.Context, e domain.Epic) (domain.Epic, error) {
	if err := e.Validate(); err != nil {
		return domain.Epic{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = "open"
	}
	if _, err := r.store.Create(ctx, epicsCollection(e.ProjectID), e.ID, e); err != nil {
		return domain.Epic{}, fmt.Errorf("create epic: %w", err)
	}
	return e, nil
}

func (r *EpicRepo) Get(ctx context.Context, projectID, id string) (domain.Epic, error) {
	doc, err := r.store.Get(ctx, epicsCollection(projectID), id)
	if err != nil {
		return domain.Epic{}, fmt.Errorf("get epic: %w", err)
	}
	var e domain.Epic
	if err := doc.Decode(&e); err != nil {
		return domain.Epic{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	e.ID, e.ProjectID = doc.ID, projectID
	return e, nil
}

func (r *EpicRepo) List(ctx context.Context, projectID string) ([]domain.Epic, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: epicsCollection(projectID), OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	out := make([]domain.Epic, 0, len(docs))
	for _, d := range docs {
		var e domain.Epic
		if err := d.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
		}
		e.ID, e.ProjectID = d.ID, projectID
		out = append(out, e)
	}
	return out, nil
}
