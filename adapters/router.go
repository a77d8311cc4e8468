package adapters

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	prettylogger "github.com/rdbell/echo-pretty-logger"
	apperrors "github.com/soffa-projects/matchqueue/errors"
	"github.com/soffa-projects/matchqueue/log"
	"github.com/ztrue/tracerr"
)

type RouterConfig struct {
	AllowOrigins []string
	// Quiet disables request logging, for tests.
	Quiet bool
}

// EchoRouter owns the echo instance serving the trigger and socket routes.
type EchoRouter struct {
	internal *echo.Echo
}

func NewEchoRouter(cfg RouterConfig) *EchoRouter {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if !cfg.Quiet {
		e.Use(prettylogger.Logger)
	}
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogLevel: 2,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			tracerr.PrintSourceColor(tracerr.Wrap(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		},
	}))
	e.Use(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		}))
	}
	e.HTTPErrorHandler = errorHandler
	return &EchoRouter{internal: e}
}

func (r *EchoRouter) Echo() *echo.Echo {
	return r.internal
}

func (r *EchoRouter) Handler() http.Handler {
	return r.internal
}

func (r *EchoRouter) Listen(port int) error {
	if port == 0 {
		port = 8080
	}
	log.Info("listening on :%d", port)
	err := r.internal.Start(fmt.Sprintf(":%d", port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (r *EchoRouter) Shutdown(ctx context.Context) error {
	return r.internal.Shutdown(ctx)
}

// RequireSecret rejects requests whose "secret" query parameter does not
// match secret. An empty secret rejects everything.
func RequireSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			given := c.QueryParam("secret")
			if secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
				return apperrors.Unauthorized("Unauthorized")
			}
			return next(c)
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ShouldBind decodes the request into input and validates its struct tags.
func ShouldBind(c echo.Context, input any) error {
	if err := c.Bind(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if err := validate.Struct(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := apperrors.GetStatusCode(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
	}
	if status >= http.StatusInternalServerError {
		log.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		message = http.StatusText(status)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, map[string]string{"error": message})
}
