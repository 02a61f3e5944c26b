package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// editableFields are the task fields a partial update may touch.
var editableFields = map[string]struct{}{
	"title": {}, "description": {}, "type": {}, "status": {}, "priority": {},
	"points": {}, "epic_id": {}, "sprint_id": {}, "target": {}, "assignees": {},
	"checklist": {}, "attachments": {}, "due_date": {},
}

// TaskRepo stores tasks and enforces the cross-entity task invariants:
// status names a project column, epic and sprint references exist.
type TaskRepo struct {
	store    *docstore.Store
	projects *ProjectRepo
	sprints  *SprintRepo
	epics    *EpicRepo
	now      func() time.Time
}

func NewTaskRepo(store *docstore.Store, projects *ProjectRepo, sprints *SprintRepo, epics *EpicRepo) *TaskRepo {
	return &TaskRepo{
		store:    store,
		projects: projects,
		sprints:  sprints,
		epics:    epics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (r *TaskRepo) WithClock(now func() time.Time) *TaskRepo {
	r.now = now
	return r
}

func (r *TaskRepo) Create(ctx context.Context, t domain.Task) (domain.Task, error) {
	project, err := r.projects.Get(ctx, t.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	t.Normalize()
	if t.Status == "" {
		t.Status = project.FirstColumn()
	}
	if err := r.check(ctx, project, t); err != nil {
		return domain.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if _, err := r.store.Create(ctx, tasksCollection(t.ProjectID), t.ID, t); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (r *TaskRepo) Get(ctx context.Context, projectID, id string) (domain.Task, error) {
	doc, err := r.store.Get(ctx, tasksCollection(projectID), id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return DecodeTask(doc)
}

// Update validates the patched task as a whole, then writes only the
// patched fields so concurrent edits to other fields survive.
func (r *TaskRepo) Update(ctx context.Context, projectID, id string, patch docstore.Patch) (domain.Task, error) {
	for k := range patch {
		if _, ok := editableFields[k]; !ok {
			return domain.Task{}, fmt.Errorf("%w: field %q is not editable", domain.ErrInvalid, k)
		}
	}
	project, err := r.projects.Get(ctx, projectID)
	if err != nil {
		return domain.Task{}, err
	}
	doc, err := r.store.Get(ctx, tasksCollection(projectID), id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	merged, err := applyPatch(doc, patch)
	if err != nil {
		return domain.Task{}, err
	}
	if err := r.check(ctx, project, merged); err != nil {
		return domain.Task{}, err
	}
	now := r.now()
	write := make(docstore.Patch, len(patch)+1)
	for k, v := range patch {
		write[k] = v
	}
	write["updated_at"] = now
	if err := r.store.Update(ctx, tasksCollection(projectID), id, write); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	merged.UpdatedAt = now
	return merged, nil
}

func (r *TaskRepo) Delete(ctx context.Context, projectID, id string) error {
	if err := r.store.Delete(ctx, tasksCollection(projectID), id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepo) check(ctx context.Context, project domain.Project, t domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, ok := project.Column(t.Status); !ok {
		return fmt.Errorf("%w: status %q is not a column of project %s", domain.ErrInvalid, t.Status, project.ID)
	}
	if t.EpicID != nil {
		if _, err := r.epics.Get(ctx, project.ID, *t.EpicID); err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: epic %s does not exist", domain.ErrInvalid, *t.EpicID)
			}
			return err
		}
	}
	if t.Target == domain.TargetSprint {
		if _, err := r.sprints.Get(ctx, project.ID, *t.SprintID); err != nil {
			if notFound(err) {
				return fmt.Errorf("%w: sprint %s does not exist", domain.ErrInvalid, *t.SprintID)
			}
			return err
		}
	}
	return nil
}

func applyPatch(doc docstore.Document, patch docstore.Patch) (domain.Task, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return domain.Task{}, fmt.Errorf("%w: field %s: %v", domain.ErrInvalid, k, err)
		}
		fields[k] = b
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return domain.Task{}, err
	}
	doc.Data = raw
	var t domain.Task
	if err := doc.Decode(&t); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	t.ID = doc.ID
	t.ProjectID, _ = projectFromCollection(doc.Collection)
	return t, nil
}

// DecodeTask is the schema boundary for task documents.
func DecodeTask(doc docstore.Document) (domain.Task, error) {
	var t domain.Task
	if err := doc.Decode(&t); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	t.ID = doc.ID
	pid, err := projectFromCollection(doc.Collection)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrInvalid, err)
	}
	t.ProjectID = pid
	if err := t.Validate(); err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", doc.ID, err)
	}
	return t, nil
}

// SprintQuery selects the tasks attached to a sprint.
func (r *TaskRepo) SprintQuery(projectID, sprintID string) docstore.Query {
	return docstore.Query{
		Collection: tasksCollection(projectID),
		Filters: []docstore.Filter{
			docstore.Where("target", docstore.OpEq, string(domain.TargetSprint)),
			docstore.Where("sprint_id", docstore.OpEq, sprintID),
		},
		OrderBy: "created_at",
	}
}

// BacklogQuery selects the tasks not attached to any sprint.
func (r *TaskRepo) BacklogQuery(projectID string) docstore.Query {
	return docstore.Query{
		Collection: tasksCollection(projectID),
		Filters:    []docstore.Filter{docstore.Where("target", docstore.OpEq, string(domain.TargetBacklog))},
		OrderBy:    "created_at",
	}
}

func (r *TaskRepo) list(ctx context.Context, q docstore.Query) ([]domain.Task, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		t, err := DecodeTask(d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TaskRepo) ListSprint(ctx context.Context, projectID, sprintID string) ([]domain.Task, error) {
	return r.list(ctx, r.SprintQuery(projectID, sprintID))
}

func (r *TaskRepo) ListBacklog(ctx context.Context, projectID string) ([]domain.Task, error) {
	return r.list(ctx, r.BacklogQuery(projectID))
}

// CountInColumn counts sprint tasks with the given status.
func (r *TaskRepo) CountInColumn(ctx context.Context, projectID, sprintID, column string) (int, error) {
	q := r.SprintQuery(projectID, sprintID)
	q.Filters = append(q.Filters, docstore.Where("status", docstore.OpEq, column))
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count column: %w", err)
	}
	return len(docs), nil
}

// DueBetween finds unfinished tasks watched by watcher across all projects
// whose due date falls in [from, to]. A task is finished when it sits in its
// project's done column.
func (r *TaskRepo) DueBetween(ctx context.Context, watcher string, from, to time.Time) ([]domain.Task, error) {
	due, err := r.list(ctx, docstore.Query{
		Group: "tasks",
		Filters: []docstore.Filter{
			docstore.Where("assignees", docstore.OpArrayContains, watcher),
			docstore.Where("due_date", docstore.OpGte, from.UTC()),
			docstore.Where("due_date", docstore.OpLte, to.UTC()),
		},
		OrderBy: "due_date",
	})
	if err != nil {
		return nil, err
	}
	doneColumn := map[string]string{}
	out := due[:0]
	for _, t := range due {
		done, ok := doneColumn[t.ProjectID]
		if !ok {
			project, err := r.projects.Get(ctx, t.ProjectID)
			if err != nil {
				return nil, err
			}
			done = project.DoneColumn()
			doneColumn[t.ProjectID] = done
		}
		if t.Status != done {
			out = append(out, t)
		}
	}
	return out, nil
}
