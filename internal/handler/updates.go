package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/realtime"
	"github.com/iliyamo/estate-portal/internal/session"
)

const (
	defaultUpdatesLimit = 50
	maxUpdatesLimit     = 200
	streamHeartbeat     = 15 * time.Second
)

type UpdatesAPI interface {
	Post(ctx context.Context, author session.AppContext, title, body string) (model.CommunityUpdate, error)
	List(ctx context.Context, identityID string, limit int) ([]model.CommunityUpdate, error)
	MarkRead(ctx context.Context, identityID, updateID string) error
	UnreadCount(ctx context.Context, identityID string) (int, error)
	WatchUnread(ctx context.Context, identityID string, fn func(count int)) (realtime.Subscription, error)
}

// UpdatesHandler serves community updates and the unread badge stream.
type UpdatesHandler struct {
	Updates   UpdatesAPI
	Heartbeat time.Duration
	Log       *zap.Logger
}

func NewUpdatesHandler(u UpdatesAPI, log *zap.Logger) *UpdatesHandler {
	return &UpdatesHandler{Updates: u, Heartbeat: streamHeartbeat, Log: log}
}

type postUpdateReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *UpdatesHandler) List(c echo.Context) error {
	limit := defaultUpdatesLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid limit")
		}
		limit = min(n, maxUpdatesLimit)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Updates.List(ctx, middleware.AppContextFrom(c).IdentityID, limit)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

func (h *UpdatesHandler) Post(c echo.Context) error {
	var req postUpdateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Updates.Post(ctx, middleware.AppContextFrom(c), req.Title, req.Body)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": u})
}

func (h *UpdatesHandler) MarkRead(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Updates.MarkRead(ctx, middleware.AppContextFrom(c).IdentityID, c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UpdatesHandler) Unread(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Updates.UnreadCount(ctx, middleware.AppContextFrom(c).IdentityID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// Stream is a Server-Sent Events feed of the caller's unread count.  It
// writes one "unread" event on subscribe and one per change, until the
// client disconnects.
func (h *UpdatesHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	counts := make(chan int, 1)
	push := func(n int) {
		// keep only the newest count if the writer is behind
		for {
			select {
			case counts <- n:
				return
			default:
			}
			select {
			case <-counts:
			default:
			}
		}
	}

	sub, err := h.Updates.WatchUnread(ctx, middleware.AppContextFrom(c).IdentityID, push)
	if err != nil {
		return fail(c, h.Log, err)
	}
	defer sub.Cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	every := h.Heartbeat
	if every <= 0 {
		every = streamHeartbeat
	}
	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-counts:
			if _, err := fmt.Fprintf(res, "event: unread\ndata: {\"count\":%d}\n\n", n); err != nil {
				return nil
			}
			res.Flush()
		case <-tick.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
