package serverutils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// resolveVia runs ResolveIdentity inside a real fiber handler and reports
// the outcome.
func resolveVia(t *testing.T, decorate func(*http.Request)) (uuid.UUID, bool) {
	t.Helper()

	var gotId uuid.UUID
	var gotOk bool

	app := fiber.New()
	app.Get("/", func(ctx *fiber.Ctx) error {
		gotId, gotOk = ResolveIdentity(ctx, testSecret)
		return ctx.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if decorate != nil {
		decorate(req)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	return gotId, gotOk
}

func TestResolveIdentityFromCookie(t *testing.T) {
	userId := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	gotId, ok := resolveVia(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: token})
	})

	assert.True(t, ok)
	assert.Equal(t, userId, gotId)
}

func TestResolveIdentityFromBearerHeader(t *testing.T) {
	userId := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	gotId, ok := resolveVia(t, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})

	assert.True(t, ok)
	assert.Equal(t, userId, gotId)
}

func TestResolveIdentityCookieWinsOverHeader(t *testing.T) {
	cookieUser := uuid.New()
	headerUser := uuid.New()
	cookieToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": cookieUser.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	headerToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": headerUser.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	gotId, ok := resolveVia(t, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: cookieToken})
		r.Header.Set("Authorization", "Bearer "+headerToken)
	})

	assert.True(t, ok)
	assert.Equal(t, cookieUser, gotId)
}

func TestResolveIdentityNeverErrors(t *testing.T) {
	expired := signToken(t, testSecret, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	wrongSecret := signToken(t, "other-secret", jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	noUserId := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	badUUID := signToken(t, testSecret, jwt.MapClaims{
		"user_id": "not-a-uuid",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name     string
		decorate func(*http.Request)
	}{
		{name: "no credential", decorate: nil},
		{name: "garbage cookie", decorate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "garbage"})
		}},
		{name: "expired token", decorate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: expired})
		}},
		{name: "wrong signature", decorate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: wrongSecret})
		}},
		{name: "missing user_id claim", decorate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: noUserId})
		}},
		{name: "user_id not a uuid", decorate: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: badUUID})
		}},
		{name: "malformed bearer header", decorate: func(r *http.Request) {
			r.Header.Set("Authorization", "Basic abc123")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotId, ok := resolveVia(t, tt.decorate)
			assert.False(t, ok)
			assert.Equal(t, uuid.Nil, gotId)
		})
	}
}

func TestRequiredMiddlewareRejectsGuests(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	app := fiber.New()
	app.Get("/private", m.Required, func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOptionalMiddlewareAlwaysContinues(t *testing.T) {
	m := NewAuthMiddleware(testSecret)

	app := fiber.New()
	app.Get("/open", m.Optional, func(ctx *fiber.Ctx) error {
		_, ok := UserIdFromLocals(ctx)
		return ctx.JSON(fiber.Map{"authenticated": ok})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
