// Package classify maps stage payloads onto presentation categories and sizes
// plain text into layout tiers. Everything here is a pure function.
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/askdb/internal/stage"
)

// Category is the closed set of presentation shapes a payload can take.
type Category int

const (
	// Unrecognized covers an absent, null or unknown type discriminator and is
	// treated as an error downstream.
	Unrecognized Category = iota
	SQL
	Tabular
	Chart
	Error
	PlainText
)

func (c Category) String() string {
	switch c {
	case SQL:
		return "sql"
	case Tabular:
		return "tabular"
	case Chart:
		return "chart"
	case Error:
		return "error"
	case PlainText:
		return "text"
	default:
		return "unrecognized"
	}
}

// Classify derives the presentation category from a payload's declared type.
func Classify(p stage.Payload) Category {
	switch p.Type {
	case stage.TypeSQL:
		return SQL
	case stage.TypeFrame:
		return Tabular
	case stage.TypeFigure:
		return Chart
	case stage.TypeError:
		return Error
	case stage.TypeText, stage.TypeQuestions:
		return PlainText
	default:
		return Unrecognized
	}
}

// Tier buckets a plain-text entry's layout width. Only PlainText entries carry
// a tier; SQL, tables and charts use fixed layout rules.
type Tier string

const (
	TierTiny   Tier = "tiny"
	TierShort  Tier = "short"
	TierMedium Tier = "medium"
	TierLong   Tier = "long"
	TierXL     Tier = "xl"
)

// TierFor sizes text purely from its rune length and word count, checking the
// smallest bucket first.
func TierFor(text string) Tier {
	length := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	switch {
	case length <= 15 && words <= 2:
		return TierTiny
	case length <= 80 || words <= 12:
		return TierShort
	case length <= 250 || words <= 40:
		return TierMedium
	case length <= 500 || words <= 80:
		return TierLong
	default:
		return TierXL
	}
}
