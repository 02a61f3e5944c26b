package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/dto"
	"github.com/LucasSckenal/nexo-sub000/internal/policy"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

type ProjectHandler struct {
	projects *repo.ProjectRepo
	epics    *repo.EpicRepo
	limits   *policy.Service
	log      *slog.Logger
}

func NewProjectHandler(projects *repo.ProjectRepo, epics *repo.EpicRepo, limits *policy.Service, log *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, epics: epics, limits: limits, log: orDefault(log)}
}

// RequireMember rejects callers that are not members of :pid. A project
// with no members is open to every signed-in user.
func (h *ProjectHandler) RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.projects.Get(c.Request.Context(), c.Param("pid"))
		if err != nil {
			respondError(c, h.log, err)
			c.Abort()
			return
		}
		if len(p.Members) > 0 && !contains(p.Members, actor(c).ID) {
			respondError(c, h.log, fmt.Errorf("project %s: %w", p.ID, docstore.ErrPermissionDenied))
			c.Abort()
			return
		}
		c.Next()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Create godoc
// @Summary      Create a project
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateProjectRequest  true  "Project"
// @Success      201   {object}  domain.Project
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	members := req.Members
	if me := actor(c).ID; len(members) > 0 && !contains(members, me) {
		members = append(members, me)
	}
	p, err := h.projects.Create(c.Request.Context(), domain.Project{
		Name:    req.Name,
		Color:   req.Color,
		Columns: req.Columns,
		Members: members,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Get godoc
// @Summary      Get a project
// @Tags         projects
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Success      200  {object}  domain.Project
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetColumnLimit godoc
// @Summary      Set a column WIP limit (0 = unlimited)
// @Tags         projects
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string                  true  "Project ID"
// @Param        cid   path      string                  true  "Column ID"
// @Param        body  body      dto.ColumnLimitRequest  true  "Limit"
// @Success      200   {object}  domain.Project
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /projects/{pid}/columns/{cid}/limit [put]
func (h *ProjectHandler) SetColumnLimit(c *gin.Context) {
	var req dto.ColumnLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.limits.SetColumnLimit(c.Request.Context(), c.Param("pid"), c.Param("cid"), *req.WIPLimit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateEpic godoc
// @Summary      Create an epic
// @Tags         epics
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        pid   path      string                 true  "Project ID"
// @Param        body  body      dto.CreateEpicRequest  true  "Epic"
// @Success      201   {object}  domain.Epic
// @Router       /projects/{pid}/epics [post]
func (h *ProjectHandler) CreateEpic(c *gin.Context) {
	var req dto.CreateEpicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.epics.Create(c.Request.Context(), domain.Epic{ProjectID: c.Param("pid"), Name: req.Name, Color: req.Color})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListEpics godoc
// @Summary      List epics
// @Tags         epics
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path  string  true  "Project ID"
// @Success      200  {array}   domain.Epic
// @Router       /projects/{pid}/epics [get]
func (h *ProjectHandler) ListEpics(c *gin.Context) {
	list, err := h.epics.List(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
