package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
)

type StaffAPI interface {
	List(ctx context.Context) ([]model.Staff, error)
	CreateAdmin(ctx context.Context, in service.StaffInput) (model.Staff, error)
}

// StaffHandler lets super admins manage admin accounts.
type StaffHandler struct {
	Staff StaffAPI
	Log   *zap.Logger
}

func NewStaffHandler(s StaffAPI, log *zap.Logger) *StaffHandler {
	return &StaffHandler{Staff: s, Log: log}
}

func (h *StaffHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Staff.List(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

func (h *StaffHandler) Create(c echo.Context) error {
	var req service.StaffInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Staff.CreateAdmin(ctx, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": st})
}
