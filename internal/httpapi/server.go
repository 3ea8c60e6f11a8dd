// Package httpapi is the intake side of the handoff: the /prestart
// endpoint that stores an inquiry and hands the visitor a deep link
// into the bot.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/3763024Irina/iren-order-bot/internal/handoff"
)

// LinkResolver turns a freshly issued token into the deep link the
// front end shows the visitor. Failures are non-fatal; the response
// then carries the bare token only.
type LinkResolver interface {
	DeepLink(ctx context.Context, token string) (string, error)
}

type Config struct {
	AllowedOrigins []string
	BodyLimit      string
	RateRPS        float64
	RateBurst      int
}

type Server struct {
	echo   *echo.Echo
	store  *handoff.Store
	links  LinkResolver
	logger *slog.Logger
}

func NewServer(store *handoff.Store, links LinkResolver, logger *slog.Logger, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s := &Server{echo: e, store: store, links: links, logger: logger}

	e.GET("/health", s.handleHealth)
	e.GET("/ping", s.handlePing)

	var prestartMW []echo.MiddlewareFunc
	if cfg.RateRPS > 0 {
		prestartMW = append(prestartMW, newIPRateLimiter(cfg.RateRPS, cfg.RateBurst).Middleware())
	}
	e.POST("/prestart", s.handlePrestart, prestartMW...)

	return s
}

// MountWebhook exposes the push-transport callback under its random
// per-process path.
func (s *Server) MountWebhook(path string, h http.Handler) {
	s.echo.POST(path, echo.WrapHandler(h))
}

func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type prestartResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UnixMilli()})
}

func (s *Server) handlePrestart(c echo.Context) error {
	var req handoff.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, prestartResponse{Error: "invalid json"})
	}

	payload, err := req.Payload()
	if err != nil {
		var missing *handoff.MissingFieldError
		if errors.As(err, &missing) {
			return c.JSON(http.StatusBadRequest, prestartResponse{Error: missing.Error()})
		}
		return c.JSON(http.StatusBadRequest, prestartResponse{Error: "invalid request"})
	}

	token, err := s.store.Put(payload)
	if err != nil {
		s.logger.Error("prestart_store_failed", "inquiry_id", payload.ID, "error", err.Error())
		return c.JSON(http.StatusInternalServerError, prestartResponse{Error: "internal error"})
	}

	resp := prestartResponse{OK: true, Token: token}
	if s.links != nil {
		url, err := s.links.DeepLink(c.Request().Context(), token)
		if err != nil {
			// Identity not resolved yet; the bare token is still
			// redeemable once the bot comes up.
			s.logger.Warn("prestart_deeplink_unavailable", "inquiry_id", payload.ID, "error", err.Error())
		} else {
			resp.URL = url
		}
	}

	s.logger.Info("prestart_accepted",
		"inquiry_id", payload.ID,
		"token", token,
		"has_url", resp.URL != "",
		"live_records", s.store.Len(),
	)
	return c.JSON(http.StatusOK, resp)
}
