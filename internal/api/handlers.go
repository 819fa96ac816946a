package api

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/fathima-sithara/chat-core/internal/auth"
	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/gateway"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type handlers struct {
	gw   *gateway.Gateway
	auth *auth.Service
	log  *zap.SugaredLogger
}

func newHandlers(gw *gateway.Gateway, authSvc *auth.Service, log *zap.SugaredLogger) *handlers {
	return &handlers{gw: gw, auth: authSvc, log: log}
}

// statusFor maps the error taxonomy onto HTTP codes; every error reaches the
// client as a readable message, never a bare 500 with no body.
func statusFor(err error) int {
	var pw *cerr.PartialWriteError
	switch {
	case errors.Is(err, cerr.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, cerr.ErrAuth):
		return fiber.StatusUnauthorized
	case errors.Is(err, cerr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &pw), errors.Is(err, cerr.ErrStorage):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		ImageBase64 string `json:"image_base64"`
		ContentType string `json:"content_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	var image []byte
	if req.ImageBase64 != "" {
		b, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image encoding"})
		}
		image = b
	}
	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()
	sess, err := h.auth.CreateAccount(ctx, req.Email, req.Password, image, req.ContentType)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	sess, err := h.auth.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sess)
}

func (h *handlers) profileImage(c *fiber.Ctx) error {
	var req struct {
		ImageBase64 string `json:"image_base64"`
		ContentType string `json:"content_type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(image) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image encoding"})
	}
	uid := c.Locals("user_id").(string)
	if err := h.auth.PersistProfileImage(c.Context(), uid, image, req.ContentType); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) me(c *fiber.Ctx) error {
	uid := c.Locals("user_id").(string)
	u, err := h.gw.Profile(c.Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(u)
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	uid := c.Locals("user_id").(string)
	users, err := h.gw.Users(c.Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": users})
}

func (h *handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		ToID string `json:"to_id"`
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	uid := c.Locals("user_id").(string)
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	m, err := h.gw.Send(ctx, uid, req.ToID, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": m})
}

func (h *handlers) history(c *fiber.Ctx) error {
	uid := c.Locals("user_id").(string)
	partner := c.Params("partner_id")
	after := cursorFromQuery(c)
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	msgs, err := h.gw.History(c.Context(), uid, partner, after, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": msgs})
}

func (h *handlers) listRecent(c *fiber.Ctx) error {
	uid := c.Locals("user_id").(string)
	entries, err := h.gw.Recent(c.Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": entries})
}

func cursorFromQuery(c *fiber.Ctx) domain.Cursor {
	var cur domain.Cursor
	if ts := c.Query("after_ts"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			cur.Timestamp = t
		}
	}
	if seq := c.Query("after_seq"); seq != "" {
		if n, err := strconv.ParseUint(seq, 10, 64); err == nil {
			cur.Seq = n
		}
	}
	return cur
}
