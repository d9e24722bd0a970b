// Package render turns classified stage payloads into display units: escaped
// HTML fragments plus the metadata the conversation log and page need.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/askdb/internal/classify"
	"github.com/mohammad-safakhou/askdb/internal/stage"
)

//go:embed templates/*.html
var templateFS embed.FS

// MaxTableRows caps how many data rows a rendered table shows; the footer
// reports the real total when the cap bites.
const MaxTableRows = 100

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Unit is one rendered conversation entry. Units are immutable once appended;
// the transient typing indicator is the only one ever removed.
type Unit struct {
	ID            string            `json:"id"`
	Role          string            `json:"role"`
	Category      string            `json:"category"`
	Tier          classify.Tier     `json:"tier,omitempty"`
	HTML          template.HTML     `json:"html"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Transient     bool              `json:"transient,omitempty"`
}

type Renderer struct {
	templates *template.Template
}

func New() *Renderer {
	return &Renderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// User renders the submitted question as a user bubble.
func (r *Renderer) User(question string) Unit {
	u, err := r.text(RoleUser, question)
	if err != nil {
		// text bubbles cannot realistically fail; keep the question visible anyway
		u = r.unit(RoleUser, classify.PlainText, template.HTML(template.HTMLEscapeString(question)))
		u.Tier = classify.TierFor(question)
	}
	return u
}

// Typing returns the transient loading indicator entry.
func (r *Renderer) Typing() Unit {
	html, err := r.exec("typing.html", nil)
	if err != nil {
		html = template.HTML("<div class=\"typing\">&hellip;</div>")
	}
	u := r.unit(RoleAssistant, classify.PlainText, html)
	u.Transient = true
	return u
}

// Render converts one assistant payload into a display unit. A chart whose
// specification cannot be parsed renders as an inline chart-error placeholder
// rather than failing the caller.
func (r *Renderer) Render(role string, p stage.Payload) (Unit, error) {
	switch classify.Classify(p) {
	case classify.SQL:
		html, err := r.exec("sql.html", map[string]string{"SQL": p.Text})
		if err != nil {
			return Unit{}, err
		}
		u := r.unit(role, classify.SQL, html)
		u.CorrelationID = p.ID
		return u, nil

	case classify.Tabular:
		return r.table(role, p)

	case classify.Chart:
		return r.chart(role, p)

	case classify.Error:
		return r.errorBanner(role, p.Error)

	case classify.PlainText:
		if len(p.Questions) > 0 {
			html, err := r.exec("questions.html", map[string]any{
				"Header":    p.Header,
				"Questions": p.Questions,
			})
			if err != nil {
				return Unit{}, err
			}
			return r.unit(role, classify.PlainText, html), nil
		}
		return r.text(role, p.Text)

	default:
		return r.errorBanner(role, "The assistant sent an unknown response.")
	}
}

func (r *Renderer) text(role, content string) (Unit, error) {
	html, err := r.exec("bubble.html", map[string]any{
		"Text": content,
		"Tier": classify.TierFor(content),
	})
	if err != nil {
		return Unit{}, err
	}
	u := r.unit(role, classify.PlainText, html)
	u.Tier = classify.TierFor(content)
	return u, nil
}

func (r *Renderer) errorBanner(role, message string) (Unit, error) {
	html, err := r.exec("error.html", map[string]string{"Message": message})
	if err != nil {
		return Unit{}, err
	}
	return r.unit(role, classify.Error, html), nil
}

func (r *Renderer) table(role string, p stage.Payload) (Unit, error) {
	if len(p.Rows) == 0 {
		html, err := r.exec("nodata.html", nil)
		if err != nil {
			return Unit{}, err
		}
		u := r.unit(role, classify.Tabular, html)
		u.CorrelationID = p.ID
		return u, nil
	}

	total := len(p.Rows)
	shown := total
	if shown > MaxTableRows {
		shown = MaxTableRows
	}
	cells := make([][]string, 0, shown)
	for _, row := range p.Rows[:shown] {
		line := make([]string, 0, len(p.Columns))
		for _, col := range p.Columns {
			line = append(line, formatCell(row[col]))
		}
		cells = append(cells, line)
	}

	html, err := r.exec("table.html", map[string]any{
		"Columns":       p.Columns,
		"Rows":          cells,
		"Total":         total,
		"Shown":         shown,
		"Truncated":     total > shown,
		"CorrelationID": p.ID,
	})
	if err != nil {
		return Unit{}, err
	}
	u := r.unit(role, classify.Tabular, html)
	u.CorrelationID = p.ID
	return u, nil
}

func (r *Renderer) chart(role string, p stage.Payload) (Unit, error) {
	fig := compactFig(p.Fig)
	if fig == "" {
		html, err := r.exec("chart_error.html", nil)
		if err != nil {
			return Unit{}, err
		}
		u := r.unit(role, classify.Chart, html)
		u.CorrelationID = p.ID
		return u, nil
	}

	entryID := uuid.NewString()
	html, err := r.exec("chart.html", map[string]string{
		"EntryID": entryID,
		"Fig":     fig,
	})
	if err != nil {
		return Unit{}, err
	}
	u := Unit{
		ID:            entryID,
		Role:          role,
		Category:      classify.Chart.String(),
		HTML:          html,
		CorrelationID: p.ID,
		CreatedAt:     time.Now().UTC(),
	}
	return u, nil
}

func (r *Renderer) unit(role string, cat classify.Category, html template.HTML) Unit {
	return Unit{
		ID:        uuid.NewString(),
		Role:      role,
		Category:  cat.String(),
		HTML:      html,
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Renderer) exec(name string, data any) (template.HTML, error) {
	var b strings.Builder
	if err := r.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(b.String()), nil
}

// compactFig validates and compacts a chart spec, returning "" when the spec
// is missing or not valid JSON.
func compactFig(fig json.RawMessage) string {
	if len(fig) == 0 || !json.Valid(fig) {
		return ""
	}
	var b bytes.Buffer
	if err := json.Compact(&b, fig); err != nil {
		return ""
	}
	return b.String()
}

// formatCell stringifies one table cell. Null and missing values become the
// empty string, never the word "null".
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
