package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/dto"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
	"github.com/LucasSckenal/nexo-sub000/internal/reminder"
)

type NotificationHandler struct {
	inbox     *notify.Inbox
	reminders *reminder.Scheduler
	log       *slog.Logger
}

func NewNotificationHandler(inbox *notify.Inbox, reminders *reminder.Scheduler, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, reminders: reminders, log: orDefault(log)}
}

// List godoc
// @Summary      My notifications, newest first
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.ListNotificationsResponse
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.inbox.List(c.Request.Context(), actor(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListNotificationsResponse{Items: list})
}

// Unread godoc
// @Summary      Unread notification count
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  dto.UnreadCountResponse
// @Router       /notifications/unread [get]
func (h *NotificationHandler) Unread(c *gin.Context) {
	n, err := h.inbox.UnreadCount(c.Request.Context(), actor(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCountResponse{Unread: n})
}

// MarkRead godoc
// @Summary      Mark one notification read
// @Tags         notifications
// @Security     CookieAuth
// @Param        id   path  string  true  "Notification ID"
// @Success      204
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.inbox.MarkRead(c.Request.Context(), actor(c).ID, c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead godoc
// @Summary      Mark all my notifications read
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  map[string]int
// @Router       /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.inbox.MarkAllRead(c.Request.Context(), actor(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Sweep godoc
// @Summary      Run my deadline reminder sweep
// @Tags         notifications
// @Produce      json
// @Security     CookieAuth
// @Success      200  {object}  reminder.SweepResult
// @Router       /me/reminders/sweep [post]
func (h *NotificationHandler) Sweep(c *gin.Context) {
	res, err := h.reminders.Sweep(c.Request.Context(), actor(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
