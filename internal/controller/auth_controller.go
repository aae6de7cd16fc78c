package controller

import (
	"time"

	"longevity-chat-be/internal/dto"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/serverutils"
	"longevity-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
}

type authController struct {
	service     service.IAuthService
	auth        *serverutils.AuthMiddleware
	tokenExpiry time.Duration
}

func NewAuthController(svc service.IAuthService, auth *serverutils.AuthMiddleware, tokenExpiry time.Duration) IAuthController {
	return &authController{service: svc, auth: auth, tokenExpiry: tokenExpiry}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/logout", c.Logout)
	h.Get("/session", c.auth.Optional, c.Session)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateStruct(req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusCreated,
		"message": "User registered successfully",
		"data":    res,
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return apperror.InvalidArgument("malformed request body")
	}
	if err := serverutils.ValidateStruct(req); err != nil {
		return err
	}

	res, token, err := c.service.Login(ctx.Context(), &req)
	if err != nil {
		return err
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     serverutils.AuthCookieName,
		Value:    token,
		Expires:  time.Now().Add(c.tokenExpiry),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Login successful",
		"data":    res,
	})
}

func (c *authController) Logout(ctx *fiber.Ctx) error {
	// Stateless logout: expire the credential cookie and always succeed.
	ctx.Cookie(&fiber.Cookie{
		Name:     serverutils.AuthCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": "Logged out successfully",
		"data":    nil,
	})
}

// Session reports the resolved identity. It never errors: an absent or
// invalid credential yields user null, not a failure.
func (c *authController) Session(ctx *fiber.Ctx) error {
	userId, ok := serverutils.UserIdFromLocals(ctx)
	if !ok {
		return ctx.JSON(fiber.Map{"user": nil})
	}

	user, err := c.service.CurrentUser(ctx.Context(), userId)
	if err != nil || user == nil {
		return ctx.JSON(fiber.Map{"user": nil})
	}
	return ctx.JSON(fiber.Map{"user": user})
}
