package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mohammad-safakhou/askdb/internal/convo"
	"github.com/mohammad-safakhou/askdb/internal/history"
	"github.com/mohammad-safakhou/askdb/internal/pipeline"
	"github.com/mohammad-safakhou/askdb/internal/stage"
)

var chatTracer = otel.Tracer("askdb/internal/server")

// ChatHandler serves the conversation API.
type ChatHandler struct {
	Coordinator *pipeline.Coordinator
	Log         *convo.Log
	History     history.Store
	Stages      *stage.Client
	HistoryLim  int
	Logger      *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/ask", h.ask)
	g.GET("/log", h.logSnapshot)
	g.GET("/stream", h.stream)
	g.GET("/history", h.recentQuestions)
	g.GET("/questions", h.suggestedQuestions)
	g.GET("/csv", h.downloadCSV)
	g.GET("/state", h.state)
}

type askRequest struct {
	Question string `json:"question"`
}

// ask runs the whole pipeline before responding; the page watches the SSE
// stream for the entries produced along the way.
func (h *ChatHandler) ask(c echo.Context) error {
	ctx, span := chatTracer.Start(c.Request().Context(), "ChatHandler.ask")
	defer span.End()

	var req askRequest
	if err := c.Bind(&req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	span.SetAttributes(attribute.Int("question_length", len(req.Question)))

	err := h.Coordinator.Submit(ctx, req.Question)
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return echo.NewHTTPError(http.StatusBadRequest, "question is empty")
	case errors.Is(err, pipeline.ErrBusy):
		return echo.NewHTTPError(http.StatusConflict, "a question is already being answered")
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "done"})
}

func (h *ChatHandler) logSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": h.Log.Snapshot(),
		"state":   h.Coordinator.State().String(),
	})
}

func (h *ChatHandler) state(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"state": h.Coordinator.State().String()})
}

// stream pushes conversation events via Server-Sent Events. Each event is one
// JSON-encoded convo.Event; a comment line every 15s keeps proxies from
// closing the idle connection.
func (h *ChatHandler) stream(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := chatTracer.Start(ctx, "ChatHandler.stream")
	defer span.End()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	send := func(ev convo.Event) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// replay the current log so a freshly opened page catches up
	for _, u := range h.Log.Snapshot() {
		if err := send(convo.Event{Kind: convo.EventAppend, Unit: u}); err != nil {
			return nil
		}
	}

	events := h.Log.Subscribe(ctx)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-events:
			if !open {
				return nil
			}
			if err := send(ev); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := resp.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func (h *ChatHandler) recentQuestions(c echo.Context) error {
	limit := h.HistoryLim
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.History.Recent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"questions": entries})
}

// suggestedQuestions proxies the upstream question-list endpoint so the page
// can offer starter questions.
func (h *ChatHandler) suggestedQuestions(c echo.Context) error {
	p := h.Stages.SuggestedQuestions(c.Request().Context())
	if p.Type == stage.TypeError {
		h.Logger.Printf("suggested questions unavailable: %s", p.Error)
		return echo.NewHTTPError(http.StatusBadGateway, p.Error)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"header":    p.Header,
		"questions": p.Questions,
	})
}

// downloadCSV redirects to the upstream export for a finished run.
func (h *ChatHandler) downloadCSV(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	return c.Redirect(http.StatusTemporaryRedirect, h.Stages.CSVURL(id))
}
