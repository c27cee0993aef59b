package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/mail"
)

// recipients accepts either a single address or a list.
type recipients []string

func (r *recipients) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*r = recipients{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

type sendReq struct {
	To      recipients `json:"to"`
	Subject string     `json:"subject"`
	HTML    string     `json:"html"`
}

// SendHandler is the admin pass-through to the email provider.
type SendHandler struct {
	Mailer mail.Mailer
	Log    *zap.Logger
}

func NewSendHandler(m mail.Mailer, log *zap.Logger) *SendHandler {
	return &SendHandler{Mailer: m, Log: log}
}

func (h *SendHandler) Send(c echo.Context) error {
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.To) == 0 || strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.HTML) == "" {
		return badRequest(c, "Missing required fields: to, subject, html")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Mailer.Send(ctx, mail.Message{To: req.To, Subject: req.Subject, HTML: req.HTML})
	switch {
	case errors.Is(err, mail.ErrInvalidMessage):
		return badRequest(c, err.Error())
	case errors.Is(err, mail.ErrMissingAPIKey):
		logger(h.Log).Error("send: email provider not configured", zap.String("request_id", requestID(c)))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "email provider not configured"})
	case err != nil:
		logger(h.Log).Error("send: provider failed", zap.String("request_id", requestID(c)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send email"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": res})
}
