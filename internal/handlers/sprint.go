package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/dto"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
)

type SprintHandler struct {
	mgr     *sprint.Manager
	sprints *repo.SprintRepo
	log     *slog.Logger
}

func NewSprintHandler(mgr *sprint.Manager, sprints *repo.SprintRepo, log *slog.Logger) *SprintHandler {
	return &SprintHandler{mgr: mgr, sprints: sprints, log: orDefault(log)}
}

// Start godoc
// @Summary      Start a sprint
// @Description  Completes the currently active sprint first, if any.
// @Tags         sprints
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string                  true  "Project ID"
// @Param        body  body      dto.StartSprintRequest  true  "Sprint"
// @Success      201   {object}  domain.Sprint
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /projects/{pid}/sprints [post]
func (h *SprintHandler) Start(c *gin.Context) {
	var req dto.StartSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.mgr.Start(c.Request.Context(), c.Param("pid"), req.Name, req.DurationDays)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// Complete godoc
// @Summary      Complete a sprint
// @Description  Unfinished tasks go back to the backlog.
// @Tags         sprints
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Param        sid  path      string  true  "Sprint ID"
// @Success      200  {object}  domain.Sprint
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/sprints/{sid}/complete [post]
func (h *SprintHandler) Complete(c *gin.Context) {
	s, err := h.mgr.Complete(c.Request.Context(), c.Param("pid"), c.Param("sid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Active godoc
// @Summary      Active sprint with countdown
// @Tags         sprints
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Success      200  {object}  sprint.Status
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/sprints/active [get]
func (h *SprintHandler) Active(c *gin.Context) {
	ctx := c.Request.Context()
	pid := c.Param("pid")
	if _, err := h.mgr.CheckActive(ctx, pid); err != nil {
		h.log.Warn("sprint expiry check failed", slog.String("project_id", pid), slog.String("error", err.Error()))
	}
	st, err := h.mgr.Status(ctx, pid)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// List godoc
// @Summary      List sprints, newest first
// @Tags         sprints
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path  string  true  "Project ID"
// @Success      200  {array}   domain.Sprint
// @Router       /projects/{pid}/sprints [get]
func (h *SprintHandler) List(c *gin.Context) {
	list, err := h.sprints.List(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
