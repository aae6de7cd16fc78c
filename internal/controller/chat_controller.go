package controller

import (
	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/serverutils"
	"longevity-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	ListSessions(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	RenameSession(ctx *fiber.Ctx) error
	DeleteSession(ctx *fiber.Ctx) error
	ListMessages(ctx *fiber.Ctx) error
	AppendMessage(ctx *fiber.Ctx) error
	ListArtifacts(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	auth    *serverutils.AuthMiddleware
}

func NewChatController(svc service.IChatService, auth *serverutils.AuthMiddleware) IChatController {
	return &chatController{service: svc, auth: auth}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	// Listing is open to guests (who get an empty list and keep their own
	// client-local history); everything that touches rows requires identity.
	h.Get("/", c.auth.Optional, c.ListSessions)
	h.Post("/", c.auth.Required, c.CreateSession)
	h.Patch("/:id", c.auth.Required, c.RenameSession)
	h.Delete("/:id", c.auth.Required, c.DeleteSession)
	h.Get("/:id/messages", c.auth.Required, c.ListMessages)
	h.Post("/:id/messages", c.auth.Required, c.AppendMessage)
	h.Get("/:id/artifacts", c.auth.Required, c.ListArtifacts)
}

func sessionIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, apperror.InvalidArgument("invalid session id")
	}
	return id, nil
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	userId, ok := serverutils.UserIdFromLocals(ctx)
	if !ok {
		// Anonymous session lists live entirely in client storage.
		return ctx.JSON(fiber.Map{
			"success": true,
			"code":    fiber.StatusOK,
			"message": "OK",
			"data":    []*dto.SessionResponse{},
		})
	}

	res, err := c.service.ListSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "OK",
		"data":    res,
	})
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}

	res, err := c.service.CreateSession(ctx.Context(), userId, req.Title)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusCreated,
		"message": "Session created",
		"data":    res,
	})
}

func (c *chatController) RenameSession(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)
	sessionId, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}

	res, err := c.service.RenameSession(ctx.Context(), userId, sessionId, req.Title)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Session renamed",
		"data":    res,
	})
}

func (c *chatController) DeleteSession(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)
	sessionId, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	if err := c.service.DeleteSession(ctx.Context(), userId, sessionId); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *chatController) ListMessages(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)
	sessionId, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListMessages(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "OK",
		"data":    res,
	})
}

func (c *chatController) AppendMessage(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)
	sessionId, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	var req dto.AppendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateStruct(req); err != nil {
		return err
	}

	res, err := c.service.AppendMessage(ctx.Context(), userId, sessionId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusCreated,
		"message": "Message appended",
		"data":    res,
	})
}

func (c *chatController) ListArtifacts(ctx *fiber.Ctx) error {
	userId, _ := serverutils.UserIdFromLocals(ctx)
	sessionId, err := sessionIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListSessionArtifacts(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "OK",
		"data":    res,
	})
}
