package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
)

type DirectoryAPI interface {
	ListResidents(ctx context.Context) ([]model.Resident, error)
	ListAll(ctx context.Context) ([]model.DirectoryEntry, error)
}

// DirectoryHandler serves the admin resident directory.
type DirectoryHandler struct {
	Directory DirectoryAPI
	Log       *zap.Logger
}

func NewDirectoryHandler(d DirectoryAPI, log *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{Directory: d, Log: log}
}

// Residents lists primary residents only.
func (h *DirectoryHandler) Residents(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Directory.ListResidents(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list, "count": len(list)})
}

// All merges residents and household members and applies ?search=.
func (h *DirectoryHandler) All(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	entries, err := h.Directory.ListAll(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	entries = service.Filter(entries, c.QueryParam("search"))
	return c.JSON(http.StatusOK, echo.Map{"data": entries, "count": len(entries)})
}
