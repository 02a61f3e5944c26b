package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/auth"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
	"github.com/LucasSckenal/nexo-sub000/internal/service"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
)

// statusOf maps layer errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, sprint.ErrNoActiveSprint), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrNotRecipient), errors.Is(err, docstore.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, sprint.ErrAlreadyCompleted),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, docstore.ErrAlreadyExists),
		errors.Is(err, docstore.ErrConditionFailed):
		return http.StatusConflict
	case errors.Is(err, docstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs server-side failures and returns a JSON payload.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// actor is the signed-in identity. Routes using it sit behind RequireSession.
func actor(c *gin.Context) domain.Identity {
	id, _ := auth.IdentityFromContext(c)
	return id
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
