package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	"github.com/LucasSckenal/nexo-sub000/internal/auth"
	"github.com/LucasSckenal/nexo-sub000/internal/config"
	"github.com/LucasSckenal/nexo-sub000/internal/handlers"
)

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, core *Core) {
	cfg := core.Config
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(302, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	api := r.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(core.Sessions, core.UserSvc, core.SweepOnLogin, core.Log)
	registerAuthRoutes(api, authHandler)

	protected := api.Group("", auth.RequireSession(core.Sessions))
	notificationHandler := handlers.NewNotificationHandler(core.Inbox, core.Reminders, core.Log)
	protected.GET("/me", authHandler.Me)
	registerNotificationRoutes(protected, notificationHandler)

	projectHandler := handlers.NewProjectHandler(core.Projects, core.Epics, core.Limits, core.Log)
	protected.POST("/projects", projectHandler.Create)
	project := protected.Group("/projects/:pid", projectHandler.RequireMember())
	registerProjectRoutes(project, projectHandler)

	taskHandler := handlers.NewTaskHandler(core.Tasks, core.SprintMgr, core.Mover, core.Notifier, core.Log)
	registerTaskRoutes(project, taskHandler)

	sprintHandler := handlers.NewSprintHandler(core.SprintMgr, core.Sprints, core.Log)
	registerSprintRoutes(project, sprintHandler)

	boardHandler := handlers.NewBoardHandler(core.Sync, core.SprintMgr, cfg.Board.ExpiryInterval.Duration(), core.Log)
	project.GET("/board", boardHandler.Snapshot)
	project.GET("/board/stream", boardHandler.Stream)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "Nexo Board API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
		})
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env, "store": cfg.Store.Driver})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/register", h.Register)
	api.POST("/auth/logout", h.Logout)
}

func registerNotificationRoutes(api *gin.RouterGroup, h *handlers.NotificationHandler) {
	api.GET("/notifications", h.List)
	api.GET("/notifications/unread", h.Unread)
	api.POST("/notifications/read-all", h.MarkAllRead)
	api.POST("/notifications/:id/read", h.MarkRead)
	api.POST("/me/reminders/sweep", h.Sweep)
}

func registerProjectRoutes(api *gin.RouterGroup, h *handlers.ProjectHandler) {
	api.GET("", h.Get)
	api.PUT("/columns/:cid/limit", h.SetColumnLimit)
	api.POST("/epics", h.CreateEpic)
	api.GET("/epics", h.ListEpics)
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("/tasks", h.Create)
	api.GET("/tasks/:tid", h.Get)
	api.PATCH("/tasks/:tid", h.Update)
	api.DELETE("/tasks/:tid", h.Delete)
	api.POST("/tasks/:tid/move", h.Move)
	api.POST("/tasks/:tid/comments", h.Comment)
	api.GET("/backlog", h.Backlog)
	api.GET("/sprints/:sid/tasks", h.SprintTasks)
}

func registerSprintRoutes(api *gin.RouterGroup, h *handlers.SprintHandler) {
	api.POST("/sprints", h.Start)
	api.GET("/sprints", h.List)
	api.GET("/sprints/active", h.Active)
	api.POST("/sprints/:sid/complete", h.Complete)
}
