package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// SprintRepo stores sprints under projects/{id}/sprints.
type SprintRepo struct {
	store *docstore.Store
}

func NewSprintRepo(store *docstore.Store) *SprintRepo {
	return &SprintRepo{store: store}
}

func (r *SprintRepo) Create(ctx context.Context, s domain.Sprint) (domain.Sprint, error) {
	if err := s.Validate(); err != nil {
		return domain.Sprint{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
	if _, err := r.store.Create(ctx, sprintsCollection(s.ProjectID), s.ID, s); err != nil {
		return domain.Sprint{}, fmt.Errorf("create sprint: %w", err)
	}
	return s, nil
}

func (r *SprintRepo) Get(ctx context.Context, projectID, id string) (domain.Sprint, error) {
	doc, err := r.store.Get(ctx, sprintsCollection(projectID), id)
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return DecodeSprint(doc)
}

// DecodeSprint is the schema boundary for sprint documents.
func DecodeSprint(doc docstore.Document) (domain.Sprint, error) {
	var s domain.Sprint
	if err := doc.Decode(&s); err != nil {
		return domain.Sprint{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	s.ID = doc.ID
	if pid, err := projectFromCollection(doc.Collection); err == nil {
		s.ProjectID = pid
	}
	if err := s.Validate(); err != nil {
		return domain.Sprint{}, fmt.Errorf("sprint %s: %w", doc.ID, err)
	}
	return s, nil
}

// ActiveQuery selects every active sprint of a project. Normally at most one.
func (r *SprintRepo) ActiveQuery(projectID string) docstore.Query {
	return docstore.Query{
		Collection: sprintsCollection(projectID),
		Filters:    []docstore.Filter{docstore.Where("status", docstore.OpEq, string(domain.SprintActive))},
	}
}

// ListActive returns active sprints, newest start first.
func (r *SprintRepo) ListActive(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	docs, err := r.store.Query(ctx, r.ActiveQuery(projectID))
	if err != nil {
		return nil, fmt.Errorf("list active sprints: %w", err)
	}
	return DecodeSprints(docs)
}

// DecodeSprints decodes and orders sprints newest start first, ties by id.
func DecodeSprints(docs []docstore.Document) ([]domain.Sprint, error) {
	out := make([]domain.Sprint, 0, len(docs))
	for _, d := range docs {
		s, err := DecodeSprint(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// List returns every sprint of a project, newest first.
func (r *SprintRepo) List(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	docs, err := r.store.Query(ctx, docstore.Query{Collection: sprintsCollection(projectID)})
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	return DecodeSprints(docs)
}

// Complete marks the sprint completed if it is still active. applied is
// false when the sprint was already completed; no write happens then.
func (r *SprintRepo) Complete(ctx context.Context, projectID, id string, at time.Time) (applied bool, err error) {
	at = at.UTC()
	err = r.store.Update(ctx, sprintsCollection(projectID), id,
		docstore.Patch{"status": domain.SprintCompleted, "completed_at": at},
		docstore.Where("status", docstore.OpEq, string(domain.SprintActive)),
	)
	if errors.Is(err, docstore.ErrConditionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete sprint: %w", err)
	}
	return true, nil
}
