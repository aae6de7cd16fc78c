package controller

import (
	"io"

	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/serverutils"
	"longevity-chat-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	Artifact(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type agentController struct {
	gateway *agent.Client
}

func NewAgentController(gateway *agent.Client) IAgentController {
	return &agentController{gateway: gateway}
}

func (c *agentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agent")
	h.Post("/chat", c.Chat)
	h.Get("/artifact", c.Artifact)
	h.Get("/health", c.Health)
}

func (c *agentController) Chat(ctx *fiber.Ctx) error {
	var req dto.AgentChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateStruct(req); err != nil {
		return err
	}

	result, err := c.gateway.SendTurn(ctx.Context(), req.Message, req.SessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "OK",
		"data": dto.AgentChatResponse{
			Output:    result.Output,
			Artifacts: result.Artifacts,
			ToolsUsed: result.ToolsUsed,
		},
	})
}

// Artifact proxies one file from the agent's output directory. Upstream
// status and body are propagated verbatim; success responses stream.
func (c *agentController) Artifact(ctx *fiber.Ctx) error {
	content, err := c.gateway.FetchArtifact(ctx.Context(), ctx.Query("u"))
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, content.ContentType)

	if content.StatusCode < 200 || content.StatusCode >= 300 {
		body, _ := io.ReadAll(content.Body)
		content.Body.Close()
		return ctx.Status(content.StatusCode).Send(body)
	}

	ctx.Status(content.StatusCode)
	if content.ContentLength >= 0 {
		return ctx.SendStream(content.Body, int(content.ContentLength))
	}
	return ctx.SendStream(content.Body)
}

func (c *agentController) Health(ctx *fiber.Ctx) error {
	if err := c.gateway.Health(ctx.Context()); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Agent is healthy",
		"data":    nil,
	})
}
