// Package pipeline sequences the three upstream stages of one question:
// generate SQL, execute it, chart the result. One run at a time; the
// coordinator owns all writes to the conversation log.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/askdb/internal/classify"
	"github.com/mohammad-safakhou/askdb/internal/convo"
	"github.com/mohammad-safakhou/askdb/internal/history"
	"github.com/mohammad-safakhou/askdb/internal/render"
	"github.com/mohammad-safakhou/askdb/internal/stage"
)

var pipelineTracer = otel.Tracer("askdb/internal/pipeline")

// State is where the coordinator sits in the run lifecycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAwaitingRows
	StateAwaitingChart
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateAwaitingRows:
		return "awaiting_rows"
	case StateAwaitingChart:
		return "awaiting_chart"
	default:
		return "idle"
	}
}

var (
	// ErrEmptyQuestion rejects blank submissions before anything is appended
	// or sent upstream.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrBusy rejects a submission while a run is active. The run in flight is
	// unaffected.
	ErrBusy = errors.New("a run is already active")
)

// Stages is the slice of the stage client the coordinator needs; stage
// failures arrive as error payloads, never Go errors.
type Stages interface {
	GenerateSQL(ctx context.Context, question string) stage.Payload
	RunSQL(ctx context.Context, id string) stage.Payload
	GenerateFigure(ctx context.Context, id string) stage.Payload
}

// Coordinator drives one pipeline run per submission and gates concurrent
// submissions. It is the only writer of the conversation log.
type Coordinator struct {
	stages   Stages
	renderer *render.Renderer
	log      *convo.Log
	history  history.Store
	logger   *log.Logger

	mu    sync.Mutex
	state State
}

func New(stages Stages, renderer *render.Renderer, conversation *convo.Log, hist history.Store, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	}
	return &Coordinator{
		stages:   stages,
		renderer: renderer,
		log:      conversation,
		history:  hist,
		logger:   logger,
		state:    StateIdle,
	}
}

// State reports the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Submit runs the full pipeline for one question in the caller's goroutine.
// It returns an error only when the submission is rejected; stage failures
// are rendered into the conversation log, not returned.
func (c *Coordinator) Submit(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		runsTotal.WithLabelValues(outcomeRejected).Inc()
		return ErrBusy
	}
	c.state = StateSubmitting
	c.mu.Unlock()

	outcome := c.run(ctx, question)
	runsTotal.WithLabelValues(outcome).Inc()
	c.setState(StateIdle)
	return nil
}

// run executes the three stages strictly in sequence and returns the terminal
// outcome label. The typing indicator spans the whole run and is removed
// exactly once on the way out.
func (c *Coordinator) run(ctx context.Context, question string) string {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.run")
	defer span.End()

	c.log.Append(c.renderer.User(question))
	c.log.ShowTyping(c.renderer.Typing())
	defer c.log.ClearTyping()

	// stage 1: question -> SQL + correlation id
	p1 := c.callStage("generate_sql", func() stage.Payload {
		return c.stages.GenerateSQL(ctx, question)
	})
	switch classify.Classify(p1) {
	case classify.SQL:
	case classify.Error:
		return c.fail(span, "generate_sql", p1.Error)
	default:
		return c.fail(span, "generate_sql", "The assistant sent an unknown response.")
	}

	corrID := strings.TrimSpace(p1.ID)
	if corrID == "" {
		// stage 1 claimed success but broke the contract; later stages have
		// nothing to correlate on
		return c.fail(span, "generate_sql", "No identifier received from the assistant.")
	}
	span.SetAttributes(attribute.String("correlation_id", corrID))

	if err := c.append(render.RoleAssistant, p1); err != nil {
		return c.fail(span, "render_sql", "The generated SQL could not be displayed.")
	}
	c.recordHistory(ctx, question, corrID)

	// stage 2: correlation id -> rows
	c.setState(StateAwaitingRows)
	p2 := c.callStage("run_sql", func() stage.Payload {
		return c.stages.RunSQL(ctx, corrID)
	})
	switch classify.Classify(p2) {
	case classify.Tabular:
	case classify.Error:
		return c.fail(span, "run_sql", p2.Error)
	default:
		return c.fail(span, "run_sql", "The assistant sent an unknown response.")
	}

	if len(p2.Rows) == 0 {
		// a run that produced no rows is a clean finish, not an error
		if err := c.append(render.RoleAssistant, stage.TextPayload("The query executed successfully but returned no data.")); err != nil {
			c.logger.Printf("no-data notice render failed: %v", err)
		}
		span.SetStatus(codes.Ok, "no data")
		return outcomeNoData
	}

	p2.ID = corrID
	if err := c.append(render.RoleAssistant, p2); err != nil {
		return c.fail(span, "render_table", "The result table could not be displayed.")
	}

	// stage 3: correlation id -> chart, best effort; the user already has
	// their table, so nothing from here may surface as a run error
	c.setState(StateAwaitingChart)
	p3 := c.callStage("generate_plotly_figure", func() stage.Payload {
		return c.stages.GenerateFigure(ctx, corrID)
	})
	if classify.Classify(p3) == classify.Chart {
		p3.ID = corrID
		if err := c.append(render.RoleAssistant, p3); err != nil {
			c.logger.Printf("chart render failed: %v", err)
			stageFailures.WithLabelValues("generate_plotly_figure").Inc()
		}
	} else {
		c.logger.Printf("chart stage skipped: type=%q error=%q", p3.Type, p3.Error)
		stageFailures.WithLabelValues("generate_plotly_figure").Inc()
	}

	span.SetStatus(codes.Ok, "completed")
	return outcomeCompleted
}

func (c *Coordinator) callStage(name string, call func() stage.Payload) stage.Payload {
	start := time.Now()
	p := call()
	stageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return p
}

// fail renders exactly one error entry and terminates the run.
func (c *Coordinator) fail(span trace.Span, stageName, message string) string {
	stageFailures.WithLabelValues(stageName).Inc()
	span.SetStatus(codes.Error, stageName+": "+message)
	if err := c.append(render.RoleAssistant, stage.ErrorPayload(message)); err != nil {
		c.logger.Printf("error entry render failed: %v", err)
	}
	return outcomeFailed
}

func (c *Coordinator) append(role string, p stage.Payload) error {
	u, err := c.renderer.Render(role, p)
	if err != nil {
		return err
	}
	c.log.Append(u)
	return nil
}

func (c *Coordinator) recordHistory(ctx context.Context, question, corrID string) {
	if c.history == nil {
		return
	}
	e := history.Entry{Question: question, CorrelationID: corrID, CreatedAt: time.Now().UTC()}
	if err := c.history.Add(ctx, e); err != nil {
		c.logger.Printf("history add failed: %v", err)
	}
}
