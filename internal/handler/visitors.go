package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
	"github.com/iliyamo/estate-portal/internal/session"
)

type VisitorsAPI interface {
	Register(ctx context.Context, actor session.AppContext, in service.VisitorInput) (model.Visitor, error)
	ListMine(ctx context.Context, actor session.AppContext) ([]model.Visitor, error)
	ListDay(ctx context.Context, day time.Time) ([]model.Visitor, error)
	CheckIn(ctx context.Context, id string) (model.Visitor, error)
	CheckOut(ctx context.Context, id string) (model.Visitor, error)
}

// VisitorsHandler serves household pre-registration and the admin gate log.
type VisitorsHandler struct {
	Visitors VisitorsAPI
	Log      *zap.Logger
}

func NewVisitorsHandler(v VisitorsAPI, log *zap.Logger) *VisitorsHandler {
	return &VisitorsHandler{Visitors: v, Log: log}
}

func (h *VisitorsHandler) Register(c echo.Context) error {
	var req service.VisitorInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Visitors.Register(ctx, middleware.AppContextFrom(c), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": v})
}

func (h *VisitorsHandler) Mine(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Visitors.ListMine(ctx, middleware.AppContextFrom(c))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

// Day lists visitors expected on ?date=YYYY-MM-DD, today by default.
func (h *VisitorsHandler) Day(c echo.Context) error {
	var day time.Time
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		day = d
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Visitors.ListDay(ctx, day)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

func (h *VisitorsHandler) CheckIn(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Visitors.CheckIn(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": v})
}

func (h *VisitorsHandler) CheckOut(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Visitors.CheckOut(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": v})
}
