// Package tokenize replaces resolved spans with stable per-category tokens.
// All state lives in a per-call Table so concurrent engine invocations can
// never corrupt each other's counters.
package tokenize

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/velamed/velamed/internal/phi"
)

var foldCaser = cases.Fold()

// Mapping records one minted token. Value is retained only while the table
// is alive; callers running in non-reversible mode must not hold onto it.
type Mapping struct {
	Token    string
	Category phi.Category
	Value    string
}

// Table is the per-call value→token table. Not safe for concurrent use;
// each engine invocation builds its own.
type Table struct {
	byKey    map[string]string
	counters map[phi.Category]int
	minted   []Mapping
}

// NewTable returns an empty token table.
func NewTable() *Table {
	return &Table{
		byKey:    make(map[string]string),
		counters: make(map[phi.Category]int),
	}
}

// normalizeKey trims and case-folds a raw value. Deliberately minimal:
// accent and spacing variants stay distinct so genuinely different
// identifiers are never collapsed into one token.
func normalizeKey(cat phi.Category, value string) string {
	return string(cat) + "\x00" + foldCaser.String(strings.TrimSpace(value))
}

// Token returns the stable token for (category, value), minting a new one on
// first sight. An identical value of the same category always maps to the
// same token within the table's lifetime.
func (t *Table) Token(cat phi.Category, value string) string {
	key := normalizeKey(cat, value)
	if tok, ok := t.byKey[key]; ok {
		return tok
	}
	t.counters[cat]++
	tok := fmt.Sprintf("[%s_%d]", cat, t.counters[cat])
	t.byKey[key] = tok
	t.minted = append(t.minted, Mapping{Token: tok, Category: cat, Value: value})
	return tok
}

// Mappings returns the minted tokens in minting order.
func (t *Table) Mappings() []Mapping { return t.minted }

// Len returns the number of distinct tokens minted.
func (t *Table) Len() int { return len(t.minted) }

// Apply rewrites the text, replacing every resolved span with its token.
// Spans must be non-overlapping and ordered by offset (the resolver's
// postcondition); byte offsets are used for splicing so accented text is
// reassembled intact.
func Apply(text string, spans []phi.Span, table *Table) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range spans {
		if s.ByteStart < prev || s.ByteEnd > len(text) {
			continue
		}
		b.WriteString(text[prev:s.ByteStart])
		b.WriteString(table.Token(s.Category, s.Value))
		prev = s.ByteEnd
	}
	b.WriteString(text[prev:])
	return b.String()
}
