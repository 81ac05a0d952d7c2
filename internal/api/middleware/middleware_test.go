package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, app *fiber.App, path string) (int, errorBody) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger())})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrServiceUnavailable })
	app.Get("/missing", func(c *fiber.Ctx) error {
		return domain.ErrUnknownIdentity.WithError(errors.New("id 42"))
	})
	app.Get("/noface", func(c *fiber.Ctx) error { return domain.ErrNoFaceDetected })
	app.Get("/capture", func(c *fiber.Ctx) error { return domain.ErrCaptureUnavailable })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/fiber", fiber.StatusServiceUnavailable, "HTTP_ERROR"},
		{"/missing", fiber.StatusNotFound, domain.ErrUnknownIdentity.Code},
		{"/noface", fiber.StatusUnprocessableEntity, domain.ErrNoFaceDetected.Code},
		{"/capture", fiber.StatusServiceUnavailable, domain.ErrCaptureUnavailable.Code},
		{"/plain", fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := call(t, app, tt.path)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRecover(t *testing.T) {
	app := fiber.New()
	app.Use(Recover(testLogger()))
	app.Get("/panic", func(c *fiber.Ctx) error { panic("kaboom") })

	status, body := call(t, app, "/panic")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}

func TestLogger_PassesErrorThrough(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(testLogger())})
	app.Use(Logger(testLogger()))
	app.Get("/missing", func(c *fiber.Ctx) error { return domain.ErrUnknownIdentity })

	status, _ := call(t, app, "/missing")
	assert.Equal(t, fiber.StatusNotFound, status)
}
