// Package webserver hosts the admin HTTP API. Handlers register themselves
// through the Api* helpers and read the application context from echo.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/talkincode/toughmeeting/internal/app"
	"go.uber.org/zap"
)

const (
	ApiPrefix = "/api/v1"

	appCtxKey = "appCtx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type AdminServer struct {
	root *echo.Echo
	api  *echo.Group
}

var server *AdminServer

// Init builds the admin server and makes it the target of the Api* helpers.
func Init(appCtx app.AppContext) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				zap.L().Warn("adminapi request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("adminapi request", fields...)
			return nil
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appCtxKey, appCtx)
			return next(c)
		}
	})

	server = &AdminServer{root: e, api: e.Group(ApiPrefix)}
	return server
}

// Echo exposes the router, mainly for tests.
func (s *AdminServer) Echo() *echo.Echo {
	return s.root
}

// Start serves on host:port until ctx is done, then shuts down gracefully.
func (s *AdminServer) Start(ctx context.Context, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	zap.S().Infof("admin api listening on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.root.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.root.Shutdown(sctx)
	}
}

// GetAppContext returns the application context stored by the server middleware.
func GetAppContext(c echo.Context) app.AppContext {
	v, _ := c.Get(appCtxKey).(app.AppContext)
	return v
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PATCH(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// jsonSerializer echo serializer backed by jsoniter.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json body").SetInternal(err)
	}
	return nil
}
