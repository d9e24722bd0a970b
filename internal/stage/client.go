package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// User-safe failure messages. The underlying cause goes to the diagnostic log
// only; raw transport errors are never shown to the user.
const (
	msgUnreachable  = "The assistant could not be reached. Please try again."
	msgUnreadable   = "The assistant returned an unreadable response."
	msgServerError  = "The assistant reported an error."
	msgMalformedRow = "The assistant returned row data that could not be read."
)

// Client performs one network round-trip per stage against the SQL assistant.
// Every method returns a Payload: transport and parse failures are mapped into
// an error payload here so the pipeline sees one uniform failure signal. No
// stage is ever retried.
type Client struct {
	base   string
	http   *http.Client
	logger *log.Logger
}

// NewClient builds a stage client for an assistant rooted at baseURL, with all
// stage endpoints under prefix (normally /api/v0).
func NewClient(baseURL, prefix string, timeout time.Duration, logger *log.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[STAGE] ", log.LstdFlags)
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/") + "/" + strings.Trim(prefix, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// GenerateSQL submits a question and yields the generated SQL with the
// correlation id used by the later stages.
func (c *Client) GenerateSQL(ctx context.Context, question string) Payload {
	body, _ := json.Marshal(map[string]string{"question": question})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/generate_sql", strings.NewReader(string(body)))
	if err != nil {
		c.logger.Printf("generate_sql request build failed: %v", err)
		return ErrorPayload(msgUnreachable)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, "generate_sql")
}

// RunSQL executes the SQL cached upstream under id and yields the row set.
func (c *Client) RunSQL(ctx context.Context, id string) Payload {
	return c.get(ctx, "run_sql", id)
}

// GenerateFigure asks for a chart specification for the rows cached under id.
func (c *Client) GenerateFigure(ctx context.Context, id string) Payload {
	return c.get(ctx, "generate_plotly_figure", id)
}

// SuggestedQuestions fetches starter questions the assistant can answer.
func (c *Client) SuggestedQuestions(ctx context.Context) Payload {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/generate_questions", nil)
	if err != nil {
		c.logger.Printf("generate_questions request build failed: %v", err)
		return ErrorPayload(msgUnreachable)
	}
	return c.do(req, "generate_questions")
}

// CSVURL returns the out-of-band export location for a correlation id. The
// download happens in a new navigation context and is not part of any run.
func (c *Client) CSVURL(id string) string {
	return c.base + "/download_csv?id=" + url.QueryEscape(id)
}

func (c *Client) get(ctx context.Context, endpoint, id string) Payload {
	target := fmt.Sprintf("%s/%s?id=%s", c.base, endpoint, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Printf("%s request build failed: %v", endpoint, err)
		return ErrorPayload(msgUnreachable)
	}
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) Payload {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("%s transport failure: %v", endpoint, err)
		return ErrorPayload(msgUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Printf("%s read failure: %v", endpoint, err)
		return ErrorPayload(msgUnreachable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("%s http %d: %s", endpoint, resp.StatusCode, excerpt(body))
		return ErrorPayload(msgUnreachable)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Printf("%s non-json body: %v: %s", endpoint, err, excerpt(body))
		return ErrorPayload(msgUnreadable)
	}

	if raw.Type == TypeError {
		msg := strings.TrimSpace(raw.Error)
		if msg == "" {
			msg = msgServerError
		}
		return ErrorPayload(msg)
	}

	p := Payload{
		Type:      raw.Type,
		ID:        raw.ID,
		Text:      raw.Text,
		Header:    raw.Header,
		Questions: raw.Questions,
	}

	frame := raw.DF
	if len(frame) == 0 {
		frame = raw.Data
	}
	if len(frame) > 0 {
		cols, rows, err := decodeFrame(frame)
		if err != nil {
			c.logger.Printf("%s frame decode failure: %v", endpoint, err)
			return ErrorPayload(msgMalformedRow)
		}
		p.Columns = cols
		p.Rows = rows
	}

	// figure specs stay opaque; validity is the renderer's concern
	if len(raw.Fig) > 0 {
		p.Fig = unquote(raw.Fig)
	}
	return p
}

func excerpt(body []byte) string {
	const limit = 240
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > limit {
		return s[:limit-3] + "..."
	}
	return s
}
