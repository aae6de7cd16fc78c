package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AuthCookieName carries the signed credential token.
	AuthCookieName = "auth_token"

	localsUserId = "user_id"
)

// ResolveIdentity extracts the user identity from the request credential.
// It is a pure function of the request: missing cookie, malformed token,
// bad signature and expiry all resolve to "no identity", never an error —
// guest browsing must always succeed.
func ResolveIdentity(ctx *fiber.Ctx, secret string) (uuid.UUID, bool) {
	tokenStr := ctx.Cookies(AuthCookieName)
	if tokenStr == "" {
		// Fall back to a bearer header for non-browser clients.
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return uuid.Nil, false
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false
	}
	sub, ok := claims[localsUserId].(string)
	if !ok {
		return uuid.Nil, false
	}
	userId, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return userId, true
}

type AuthMiddleware struct {
	secret string
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: secret}
}

// Optional resolves the identity when present and always continues.
func (m *AuthMiddleware) Optional(ctx *fiber.Ctx) error {
	if userId, ok := ResolveIdentity(ctx, m.secret); ok {
		ctx.Locals(localsUserId, userId)
	}
	return ctx.Next()
}

// Required rejects requests without a resolvable identity.
func (m *AuthMiddleware) Required(ctx *fiber.Ctx) error {
	userId, ok := ResolveIdentity(ctx, m.secret)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"code":    fiber.StatusUnauthorized,
			"message": "authentication required",
		})
	}
	ctx.Locals(localsUserId, userId)
	return ctx.Next()
}

// UserIdFromLocals returns the identity stored by the middleware.
func UserIdFromLocals(ctx *fiber.Ctx) (uuid.UUID, bool) {
	userId, ok := ctx.Locals(localsUserId).(uuid.UUID)
	return userId, ok
}
