package classify

import (
	"strings"
	"testing"

	"github.com/mohammad-safakhou/askdb/internal/stage"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		p    stage.Payload
		want Category
	}{
		{"sql", stage.Payload{Type: stage.TypeSQL, Text: "SELECT 1"}, SQL},
		{"frame", stage.Payload{Type: stage.TypeFrame}, Tabular},
		{"figure", stage.Payload{Type: stage.TypeFigure}, Chart},
		{"error", stage.Payload{Type: stage.TypeError, Error: "boom"}, Error},
		{"text", stage.Payload{Type: stage.TypeText, Text: "hi"}, PlainText},
		{"questions", stage.Payload{Type: stage.TypeQuestions}, PlainText},
		{"missing type", stage.Payload{}, Unrecognized},
		{"unknown type", stage.Payload{Type: "csv"}, Unrecognized},
		{"null-ish type", stage.Payload{Type: "null"}, Unrecognized},
	}
	for _, tc := range cases {
		if got := Classify(tc.p); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassifyIgnoresContentShape(t *testing.T) {
	// the declared type wins even when the content looks like something else
	p := stage.Payload{Type: stage.TypeText, Text: "SELECT * FROM users"}
	if got := Classify(p); got != PlainText {
		t.Fatalf("got %v want PlainText", got)
	}
}

func TestTierBoundaries(t *testing.T) {
	words := func(n, width int) string {
		w := strings.Repeat("x", width)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = w
		}
		return strings.Join(parts, " ")
	}

	cases := []struct {
		name string
		text string
		want Tier
	}{
		{"empty", "", TierTiny},
		{"one word", "hi", TierTiny},
		{"15 runes 2 words", "supercalifrag x", TierTiny},
		{"16 runes 2 words", "supercalifragi x", TierShort},
		{"15 runes 3 words", "one two three34", TierShort},
		{"80 runes 2 words", words(2, 39) + "x", TierShort},
		{"long but 12 words", words(12, 20), TierShort},
		{"exactly 80 runes 13 words", words(13, 5) + "yyy", TierShort},
		{"81 runes 13 words", words(13, 5) + "yyyy", TierMedium},
		{"13 words over 80 runes", words(13, 7), TierMedium},
		{"exactly 250 runes 41 words", words(41, 5) + strings.Repeat("y", 5), TierMedium},
		{"41 words over 250 runes", words(41, 7), TierLong},
		{"exactly 500 runes 81 words", words(81, 5) + strings.Repeat("y", 15), TierLong},
		{"under 500 runes 81 words", words(81, 5), TierLong},
		{"81 words over 500 runes", words(81, 7), TierXL},
	}
	for _, tc := range cases {
		if got := TierFor(tc.text); got != tc.want {
			t.Fatalf("%s (len=%d): got %v want %v", tc.name, len(tc.text), got, tc.want)
		}
	}
}

func TestTierCountsRunesNotBytes(t *testing.T) {
	// 10 runes, 30 bytes; still tiny territory by rune count with one word
	text := strings.Repeat("é", 10)
	if got := TierFor(text); got != TierTiny {
		t.Fatalf("got %v want TierTiny", got)
	}
}
