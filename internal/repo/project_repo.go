package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// ProjectRepo stores projects and their column definitions.
type ProjectRepo struct {
	store *docstore.Store
	now   func() time.Time
}

func NewProjectRepo(store *docstore.Store) *ProjectRepo {
	return &ProjectRepo{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a project. Missing columns get the default board.
func (r *ProjectRepo) Create(ctx context.Context, p domain.Project) (domain.Project, error) {
	if len(p.Columns) == 0 {
		p.Columns = domain.DefaultColumns()
	}
	if p.Members == nil {
		p.Members = []string{}
	}
	if err := p.Validate(); err != nil {
		return domain.Project{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.now()
	if _, err := r.store.Create(ctx, projectsCollection, p.ID, p); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) Get(ctx context.Context, id string) (domain.Project, error) {
	doc, err := r.store.Get(ctx, projectsCollection, id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return DecodeProject(doc)
}

// DecodeProject is the schema boundary for project documents.
func DecodeProject(doc docstore.Document) (domain.Project, error) {
	var p domain.Project
	if err := doc.Decode(&p); err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	p.ID = doc.ID
	if err := p.Validate(); err != nil {
		return domain.Project{}, fmt.Errorf("project %s: %w", doc.ID, err)
	}
	return p, nil
}

// Query selects the one project document, for subscriptions.
func (r *ProjectRepo) Query(id string) docstore.Query {
	return docstore.Query{
		Collection: projectsCollection,
		Filters:    []docstore.Filter{docstore.Where("id", docstore.OpEq, id)},
	}
}

// SetColumns replaces the column list in one field update.
func (r *ProjectRepo) SetColumns(ctx context.Context, id string, cols []domain.Column) error {
	if err := r.store.Update(ctx, projectsCollection, id, docstore.Patch{"columns": cols}); err != nil {
		return fmt.Errorf("update columns: %w", err)
	}
	return nil
}
