package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/middleware"
	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/service"
	"github.com/iliyamo/estate-portal/internal/session"
)

type HouseholdAPI interface {
	AddMember(ctx context.Context, primaryResidentID string, f service.MemberFields) (model.HouseholdMember, error)
	ListMembers(ctx context.Context, primaryResidentID string) ([]model.HouseholdMember, error)
	SetAccessStatus(ctx context.Context, actor session.AppContext, memberID string, status model.AccessStatus) (model.HouseholdMember, error)
	RemoveMember(ctx context.Context, actor session.AppContext, memberID string) error
	ResendInvitation(ctx context.Context, actor session.AppContext, memberID string) (model.HouseholdMember, error)
}

// HouseholdHandler lets a primary resident manage the members of their
// household.  The resident id is always the caller's identity id.
type HouseholdHandler struct {
	Members HouseholdAPI
	Log     *zap.Logger
}

func NewHouseholdHandler(m HouseholdAPI, log *zap.Logger) *HouseholdHandler {
	return &HouseholdHandler{Members: m, Log: log}
}

type accessReq struct {
	Status string `json:"status"`
}

func (h *HouseholdHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Members.ListMembers(ctx, middleware.AppContextFrom(c).IdentityID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": list})
}

// Add creates the member and sends the invitation.  When only the email
// failed the member is returned with a 502 so the caller can resend.
func (h *HouseholdHandler) Add(c echo.Context) error {
	var req service.MemberFields
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Members.AddMember(ctx, middleware.AppContextFrom(c).IdentityID, req)
	if errors.Is(err, service.ErrInviteNotSent) {
		logger(h.Log).Warn("household: invite not sent", zap.String("member_id", m.ID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": service.ErrInviteNotSent.Error(), "data": m})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": m})
}

func (h *HouseholdHandler) SetAccess(c echo.Context) error {
	var req accessReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	status := model.AccessStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	m, err := h.Members.SetAccessStatus(ctx, middleware.AppContextFrom(c), c.Param("id"), status)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": m})
}

func (h *HouseholdHandler) Remove(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Members.RemoveMember(ctx, middleware.AppContextFrom(c), c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *HouseholdHandler) Resend(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Members.ResendInvitation(ctx, middleware.AppContextFrom(c), c.Param("id"))
	if errors.Is(err, service.ErrInviteNotSent) {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": service.ErrInviteNotSent.Error(), "data": m})
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": m})
}
