package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/dto"
	"github.com/LucasSckenal/nexo-sub000/internal/move"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
)

type TaskHandler struct {
	tasks    *repo.TaskRepo
	sprints  *sprint.Manager
	mover    *move.Mover
	notifier *notify.Service
	log      *slog.Logger
}

func NewTaskHandler(tasks *repo.TaskRepo, sprints *sprint.Manager, mover *move.Mover, notifier *notify.Service, log *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, sprints: sprints, mover: mover, notifier: notifier, log: orDefault(log)}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string                 true  "Project ID"
// @Param        body  body      dto.CreateTaskRequest  true  "Task"
// @Success      201   {object}  domain.Task
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /projects/{pid}/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	pid := c.Param("pid")
	t := domain.Task{
		ProjectID:   pid,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
		Priority:    req.Priority,
		Points:      req.Points,
		EpicID:      req.EpicID,
		Target:      domain.TargetBacklog,
		Assignees:   req.Assignees,
		Checklist:   req.Checklist,
		Attachments: req.Attachments,
		DueDate:     req.DueDate.Ptr(),
	}
	if req.Sprint {
		active, err := h.sprints.Active(ctx, pid)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if active == nil {
			respondError(c, h.log, move.ErrNoActiveSprint)
			return
		}
		t.Target, t.SprintID = domain.TargetSprint, &active.ID
	}
	created, err := h.tasks.Create(ctx, t)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if len(created.Assignees) > 0 {
		h.notifier.Assigned(ctx, actor(c), created, nil)
	}
	c.JSON(http.StatusCreated, created)
}

// Get godoc
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Param        tid  path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/tasks/{tid} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	t, err := h.tasks.Get(c.Request.Context(), c.Param("pid"), c.Param("tid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update godoc
// @Summary      Edit task fields
// @Description  Only the fields present are written; concurrent edits to other fields are kept.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string                 true  "Project ID"
// @Param        tid   path      string                 true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  domain.Task
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /projects/{pid}/tasks/{tid} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch := updatePatch(req)
	if len(patch) == 0 {
		badRequest(c, fmt.Errorf("no fields to update"))
		return
	}
	ctx := c.Request.Context()
	pid, tid := c.Param("pid"), c.Param("tid")
	var previous []string
	if req.Assignees != nil {
		before, err := h.tasks.Get(ctx, pid, tid)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		previous = before.Assignees
	}
	updated, err := h.tasks.Update(ctx, pid, tid, patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if req.Assignees != nil {
		h.notifier.Assigned(ctx, actor(c), updated, previous)
	}
	c.JSON(http.StatusOK, updated)
}

func updatePatch(req dto.UpdateTaskRequest) docstore.Patch {
	p := docstore.Patch{}
	if req.Title != nil {
		p["title"] = *req.Title
	}
	if req.Description != nil {
		p["description"] = *req.Description
	}
	if req.Type != nil {
		p["type"] = *req.Type
	}
	if req.Priority != nil {
		p["priority"] = *req.Priority
	}
	if req.Points != nil {
		p["points"] = *req.Points
	}
	if req.ClearEpic {
		p["epic_id"] = nil
	} else if req.EpicID != nil {
		p["epic_id"] = *req.EpicID
	}
	if req.Assignees != nil {
		p["assignees"] = *req.Assignees
	}
	if req.Checklist != nil {
		p["checklist"] = *req.Checklist
	}
	if req.Attachments != nil {
		p["attachments"] = *req.Attachments
	}
	if req.ClearDueDate {
		p["due_date"] = nil
	} else if req.DueDate != nil && req.DueDate.Ptr() != nil {
		p["due_date"] = *req.DueDate.Ptr()
	}
	return p
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Security     CookieAuth
// @Param        pid  path  string  true  "Project ID"
// @Param        tid  path  string  true  "Task ID"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/tasks/{tid} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("pid"), c.Param("tid")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Move godoc
// @Summary      Move a task
// @Description  Moves to a column, to the backlog or to the active sprint. Over-limit columns produce a warning, never a rejection.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string           true  "Project ID"
// @Param        tid   path      string           true  "Task ID"
// @Param        body  body      dto.MoveRequest  true  "Destination"
// @Success      200   {object}  move.Result
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /projects/{pid}/tasks/{tid}/move [post]
func (h *TaskHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.mover.Move(c.Request.Context(), actor(c), c.Param("pid"), c.Param("tid"), move.Location{Column: req.Column, Bucket: req.Bucket})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Comment godoc
// @Summary      Mention people on a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string              true  "Project ID"
// @Param        tid   path      string              true  "Task ID"
// @Param        body  body      dto.CommentRequest  true  "Comment"
// @Success      202   {object}  dto.FanoutResponse
// @Router       /projects/{pid}/tasks/{tid}/comments [post]
func (h *TaskHandler) Comment(c *gin.Context) {
	var req dto.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := h.tasks.Get(ctx, c.Param("pid"), c.Param("tid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, fanout(h.notifier.Mentioned(ctx, actor(c), t, req.Mentions, req.Message)))
}

func fanout(r notify.Report) dto.FanoutResponse {
	out := dto.FanoutResponse{Delivered: r.Delivered, Failed: make([]string, 0, len(r.Failed))}
	for who := range r.Failed {
		out.Failed = append(out.Failed, who)
	}
	sort.Strings(out.Failed)
	return out
}

// Backlog godoc
// @Summary      List backlog tasks
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Success      200  {object}  dto.ListTasksResponse
// @Router       /projects/{pid}/backlog [get]
func (h *TaskHandler) Backlog(c *gin.Context) {
	list, err := h.tasks.ListBacklog(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{Items: list})
}

// SprintTasks godoc
// @Summary      List tasks of a sprint
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Param        sid  path      string  true  "Sprint ID"
// @Success      200  {object}  dto.ListTasksResponse
// @Router       /projects/{pid}/sprints/{sid}/tasks [get]
func (h *TaskHandler) SprintTasks(c *gin.Context) {
	list, err := h.tasks.ListSprint(c.Request.Context(), c.Param("pid"), c.Param("sid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{Items: list})
}
