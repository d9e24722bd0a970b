// Package server exposes the conversation over HTTP: a server-rendered chat
// page, JSON endpoints for submitting questions and reading the log, and an
// SSE stream that pushes new entries to the page.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/askdb/config"
	"github.com/mohammad-safakhou/askdb/internal/convo"
	"github.com/mohammad-safakhou/askdb/internal/history"
	"github.com/mohammad-safakhou/askdb/internal/history/inmemory"
	historyredis "github.com/mohammad-safakhou/askdb/internal/history/redis"
	"github.com/mohammad-safakhou/askdb/internal/pipeline"
	"github.com/mohammad-safakhou/askdb/internal/render"
	"github.com/mohammad-safakhou/askdb/internal/stage"
)

// Run wires the stage client, renderer, conversation log and coordinator
// together and serves until the listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	stageLogger := log.New(log.Writer(), "[STAGE] ", log.LstdFlags)
	client := stage.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.RequestPrefix, cfg.Upstream.Timeout, stageLogger)

	renderer := render.New()

	var hist history.Store
	var err error
	switch cfg.History.Backend {
	case "redis":
		r := cfg.History.Redis
		hist, err = historyredis.New(context.Background(), r.Host, r.Port, r.Password, r.DB)
		if err != nil {
			return err
		}
	default:
		hist = inmemory.New()
	}

	conversation := convo.New()
	pipeLogger := log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	coord := pipeline.New(client, renderer, conversation, hist, pipeLogger)

	ch := &ChatHandler{
		Coordinator: coord,
		Log:         conversation,
		History:     hist,
		Stages:      client,
		HistoryLim:  cfg.History.Limit,
		Logger:      log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
	ch.Register(e.Group("/api"))
	registerPage(e, cfg.Server.PageTitle)

	return e.Start(addr)
}
