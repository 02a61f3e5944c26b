package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LucasSckenal/nexo-sub000/internal/board"
	"github.com/LucasSckenal/nexo-sub000/internal/sprint"
)

const (
	keepAlive       = 25 * time.Second
	snapshotTimeout = 5 * time.Second
)

type BoardHandler struct {
	sync   *board.Synchronizer
	mgr    *sprint.Manager
	expiry time.Duration
	log    *slog.Logger
}

// NewBoardHandler returns a BoardHandler. While a stream is open the active
// sprint is checked for expiry every expiry interval.
func NewBoardHandler(sync *board.Synchronizer, mgr *sprint.Manager, expiry time.Duration, log *slog.Logger) *BoardHandler {
	return &BoardHandler{sync: sync, mgr: mgr, expiry: expiry, log: orDefault(log)}
}

// Stream godoc
// @Summary      Live board
// @Description  Server-Sent Events. Each "board" event carries the full current view; clients replace their state with it.
// @Tags         board
// @Produce      text/event-stream
// @Security     CookieAuth
// @Param        pid  path  string  true  "Project ID"
// @Success      200  {object}  board.View
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/board/stream [get]
func (h *BoardHandler) Stream(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	pid := c.Param("pid")
	live, err := h.sync.Open(ctx, pid)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer live.Close()
	go h.mgr.RunExpiry(ctx, pid, h.expiry)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ping.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case v, ok := <-live.Views():
			if !ok {
				if err := live.Err(); err != nil {
					c.SSEvent("error", gin.H{"error": err.Error()})
				}
				return false
			}
			c.SSEvent("board", v)
			return true
		}
	})
}

// Snapshot godoc
// @Summary      Board snapshot
// @Description  The first fully loaded view, for clients without streaming.
// @Tags         board
// @Produce      json
// @Security     CookieAuth
// @Param        pid  path      string  true  "Project ID"
// @Success      200  {object}  board.View
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /projects/{pid}/board [get]
func (h *BoardHandler) Snapshot(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	defer cancel()
	pid := c.Param("pid")
	if _, err := h.mgr.CheckActive(ctx, pid); err != nil {
		h.log.Warn("sprint expiry check failed", slog.String("project_id", pid), slog.String("error", err.Error()))
	}
	live, err := h.sync.Open(ctx, pid)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer live.Close()
	for {
		select {
		case <-ctx.Done():
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "board did not load in time"})
			return
		case v, ok := <-live.Views():
			if !ok {
				err := live.Err()
				if err == nil {
					err = errors.New("board closed before loading")
				}
				respondError(c, h.log, err)
				return
			}
			if !v.Loading {
				c.JSON(http.StatusOK, v)
				return
			}
		}
	}
}
