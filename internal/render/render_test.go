package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/askdb/internal/classify"
	"github.com/mohammad-safakhou/askdb/internal/stage"
)

func mustRender(t *testing.T, p stage.Payload) Unit {
	t.Helper()
	u, err := New().Render(RoleAssistant, p)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return u
}

func TestSQLIsEscaped(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeSQL, ID: "run-1", Text: "SELECT a FROM t WHERE a < 1 AND b > 2 && c"})
	html := string(u.HTML)
	if strings.Contains(html, "a < 1") || strings.Contains(html, "b > 2") {
		t.Fatalf("unescaped comparison operators in %q", html)
	}
	if !strings.Contains(html, "a &lt; 1") || !strings.Contains(html, "b &gt; 2") {
		t.Fatalf("expected escaped operators in %q", html)
	}
	if !strings.Contains(html, "&amp;&amp;") {
		t.Fatalf("expected escaped ampersands in %q", html)
	}
	if u.CorrelationID != "run-1" {
		t.Fatalf("correlation id = %q", u.CorrelationID)
	}
}

func TestTableCellsEscaped(t *testing.T) {
	u := mustRender(t, stage.Payload{
		Type:    stage.TypeFrame,
		Columns: []string{"name"},
		Rows:    []map[string]any{{"name": "<script>alert(1)</script>"}},
	})
	html := string(u.HTML)
	if strings.Contains(html, "<script>alert") {
		t.Fatalf("script tag survived: %q", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup in %q", html)
	}
}

func TestErrorBannerEscapedWithGlyph(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeError, Error: "bad <thing> & worse"})
	html := string(u.HTML)
	if u.Category != classify.Error.String() {
		t.Fatalf("category = %q", u.Category)
	}
	if !strings.Contains(html, "&#9888;") {
		t.Fatalf("missing warning glyph in %q", html)
	}
	if strings.Contains(html, "<thing>") || !strings.Contains(html, "&lt;thing&gt;") {
		t.Fatalf("message not escaped: %q", html)
	}
}

func TestPlainTextCarriesTier(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeText, Text: "hi"})
	if u.Tier != classify.TierTiny {
		t.Fatalf("tier = %q", u.Tier)
	}
	if !strings.Contains(string(u.HTML), "tier-tiny") {
		t.Fatalf("tier class missing: %q", u.HTML)
	}
}

func TestPlainTextEscaped(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeText, Text: "a < b & c > d"})
	html := string(u.HTML)
	if !strings.Contains(html, "a &lt; b &amp; c &gt; d") {
		t.Fatalf("text not escaped: %q", html)
	}
}

func TestEmptyRowsRenderNoData(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeFrame, ID: "run-9"})
	html := string(u.HTML)
	if !strings.Contains(html, "No data returned.") {
		t.Fatalf("missing no-data notice: %q", html)
	}
	if strings.Contains(html, "<table") {
		t.Fatalf("empty result must not render a table: %q", html)
	}
}

func TestTableTruncatesAt100WithTotalFooter(t *testing.T) {
	rows := make([]map[string]any, 120)
	for i := range rows {
		rows[i] = map[string]any{"n": float64(i)}
	}
	u := mustRender(t, stage.Payload{Type: stage.TypeFrame, ID: "run-7", Columns: []string{"n"}, Rows: rows})
	html := string(u.HTML)

	if got := strings.Count(html, "<tr>") - 1; got != MaxTableRows { // minus header row
		t.Fatalf("rendered %d data rows, want %d", got, MaxTableRows)
	}
	if !strings.Contains(html, "Showing first 100 of 120 rows.") {
		t.Fatalf("missing truncation footer: %q", html)
	}
}

func TestTableAtCapHasNoFooter(t *testing.T) {
	rows := make([]map[string]any, 100)
	for i := range rows {
		rows[i] = map[string]any{"n": float64(i)}
	}
	u := mustRender(t, stage.Payload{Type: stage.TypeFrame, Columns: []string{"n"}, Rows: rows})
	if strings.Contains(string(u.HTML), "Showing first") {
		t.Fatalf("footer must only appear past the cap: %q", u.HTML)
	}
}

func TestNullCellsRenderEmpty(t *testing.T) {
	u := mustRender(t, stage.Payload{
		Type:    stage.TypeFrame,
		Columns: []string{"a", "b"},
		Rows:    []map[string]any{{"a": nil, "b": "x"}},
	})
	if strings.Contains(string(u.HTML), "null") {
		t.Fatalf("null leaked into output: %q", u.HTML)
	}
	if !strings.Contains(string(u.HTML), "<td></td>") {
		t.Fatalf("null cell should be empty: %q", u.HTML)
	}
}

func TestFormatCell(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{true, "true"},
		{float64(3), "3"},
		{float64(3.5), "3.5"},
		{json.Number("42"), "42"},
	}
	for _, tc := range cases {
		if got := formatCell(tc.in); got != tc.want {
			t.Fatalf("formatCell(%v) = %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestChartEmbedsCompactFig(t *testing.T) {
	u := mustRender(t, stage.Payload{
		Type: stage.TypeFigure,
		ID:   "run-3",
		Fig:  json.RawMessage("{\n  \"data\": []\n}"),
	})
	html := string(u.HTML)
	if !strings.Contains(html, "chart-mount") {
		t.Fatalf("missing mount point: %q", html)
	}
	if !strings.Contains(html, fmt.Sprintf("chart-%s", u.ID)) {
		t.Fatalf("mount id must match unit id: %q", html)
	}
	if u.CorrelationID != "run-3" {
		t.Fatalf("correlation id = %q", u.CorrelationID)
	}
}

func TestInvalidFigRendersPlaceholder(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: stage.TypeFigure, Fig: json.RawMessage("{broken")})
	if !strings.Contains(string(u.HTML), "Chart could not be displayed.") {
		t.Fatalf("missing placeholder: %q", u.HTML)
	}
}

func TestUnknownTypeRendersErrorBanner(t *testing.T) {
	u := mustRender(t, stage.Payload{Type: "csv"})
	if u.Category != classify.Error.String() {
		t.Fatalf("category = %q", u.Category)
	}
	if !strings.Contains(string(u.HTML), "unknown response") {
		t.Fatalf("html = %q", u.HTML)
	}
}

func TestQuestionListRendersButtons(t *testing.T) {
	u := mustRender(t, stage.Payload{
		Type:      stage.TypeQuestions,
		Header:    "Try asking:",
		Questions: []string{"How many users?", "Top products?"},
	})
	html := string(u.HTML)
	if !strings.Contains(html, "Try asking:") {
		t.Fatalf("missing header: %q", html)
	}
	if strings.Count(html, "data-question") != 2 {
		t.Fatalf("want 2 question buttons: %q", html)
	}
}

func TestUserBubbleEscaped(t *testing.T) {
	u := New().User("<b>hi</b>")
	if u.Role != RoleUser {
		t.Fatalf("role = %q", u.Role)
	}
	if strings.Contains(string(u.HTML), "<b>hi</b>") {
		t.Fatalf("question not escaped: %q", u.HTML)
	}
}

func TestTypingIsTransient(t *testing.T) {
	u := New().Typing()
	if !u.Transient {
		t.Fatal("typing unit must be transient")
	}
}
