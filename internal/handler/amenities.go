package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
)

// AmenitiesRoute is the cached listing route purged on every write.
const AmenitiesRoute = "/api/amenities"

type AmenitiesAPI interface {
	List(ctx context.Context) ([]model.Amenity, error)
	Create(ctx context.Context, in service.AmenityInput) (model.Amenity, error)
	Delete(ctx context.Context, id string) error
}

// CachePurger drops cached responses of a route.
type CachePurger interface {
	Purge(ctx context.Context, route string) error
}

type AmenitiesHandler struct {
	Amenities AmenitiesAPI
	Cache     CachePurger
	Log       *zap.Logger
}

func NewAmenitiesHandler(a AmenitiesAPI, cache CachePurger, log *zap.Logger) *AmenitiesHandler {
	return &AmenitiesHandler{Amenities: a, Cache: cache, Log: log}
}

func (h *AmenitiesHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Amenities.List(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

func (h *AmenitiesHandler) Create(c echo.Context) error {
	var req service.AmenityInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	a, err := h.Amenities.Create(ctx, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, echo.Map{"data": a})
}

func (h *AmenitiesHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Amenities.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// purge is best effort; stale entries expire with the cache TTL.
func (h *AmenitiesHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx, AmenitiesRoute); err != nil {
		logger(h.Log).Warn("amenities: cache purge failed", zap.Error(err))
	}
}
