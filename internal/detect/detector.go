// Package detect runs the pattern library over clinical text and emits
// candidate spans with character-accurate offsets and confidences.
package detect

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/velamed/velamed/internal/patterns"
	"github.com/velamed/velamed/internal/phi"
)

// Specialist is an optional second detection layer (e.g. the ONNX name
// model). It must be deterministic for identical input and safe for
// concurrent use.
type Specialist interface {
	Detect(ctx context.Context, text string) ([]phi.Span, error)
}

// Detector scans text with a fixed matcher set. It holds no per-call state;
// one Detector serves concurrent requests.
type Detector struct {
	matchers   []*patterns.Matcher
	specialist Specialist
	maxConf    float64
	boost      float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithSpecialist attaches a secondary detection layer whose spans are merged
// with the regex candidates.
func WithSpecialist(s Specialist) Option {
	return func(d *Detector) { d.specialist = s }
}

// New builds a Detector over the given matcher library.
func New(matchers []*patterns.Matcher, opts ...Option) *Detector {
	d := &Detector{
		matchers: matchers,
		maxConf:  0.99,
		boost:    0.15,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result carries the candidate set plus non-fatal per-matcher failures.
type Result struct {
	Candidates []phi.Span
	// Warnings lists matchers that failed and were skipped. The strings are
	// matcher names only, never text content.
	Warnings []string
}

// Run scans the text with every matcher in library order. The candidate set
// is fully determined by the input: matchers execute sequentially, specialist
// spans are appended after, and no stage depends on timing or goroutine
// interleaving. A matcher that panics is isolated: its candidates are dropped
// and a warning is recorded, but the pass continues.
func (d *Detector) Run(ctx context.Context, text string) (*Result, error) {
	res := &Result{}
	offsets := newOffsetIndex(text)

	for _, m := range d.matchers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spans, err := d.runMatcher(m, text, offsets)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pattern_engine:%s", m.Name))
			continue
		}
		res.Candidates = append(res.Candidates, spans...)
	}

	if d.specialist != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spans, err := d.specialist.Detect(ctx, text)
		if err != nil {
			res.Warnings = append(res.Warnings, "pattern_engine:ml_ner")
		} else {
			for _, s := range spans {
				if s.ByteStart < 0 || s.ByteEnd > len(text) || s.ByteStart >= s.ByteEnd {
					continue
				}
				s.Start = offsets.runeAt(s.ByteStart)
				s.End = offsets.runeAt(s.ByteEnd)
				s.Value = text[s.ByteStart:s.ByteEnd]
				s.Source = phi.SourceNER
				res.Candidates = append(res.Candidates, s)
			}
		}
	}

	return res, nil
}

// runMatcher executes one matcher, converting panics into errors so a bad
// pattern cannot abort the whole detection pass.
func (d *Detector) runMatcher(m *patterns.Matcher, text string, offsets *offsetIndex) (spans []phi.Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			spans = nil
			err = fmt.Errorf("matcher %s panicked", m.Name)
		}
	}()

	idx := m.Regexp().FindAllStringSubmatchIndex(text, -1)
	for _, match := range idx {
		start, end := match[0], match[1]
		if m.ValueGroup > 0 && 2*m.ValueGroup+1 < len(match) {
			gs, ge := match[2*m.ValueGroup], match[2*m.ValueGroup+1]
			if gs >= 0 && ge > gs {
				start, end = gs, ge
			}
		}
		if start >= end {
			continue
		}

		conf := m.BaseConfidence
		if labelBefore(text, start, m.Category) {
			conf += d.boost
		}
		if conf > d.maxConf {
			conf = d.maxConf
		}

		spans = append(spans, phi.Span{
			Category:   m.Category,
			Start:      offsets.runeAt(start),
			End:        offsets.runeAt(end),
			ByteStart:  start,
			ByteEnd:    end,
			Value:      text[start:end],
			Confidence: conf,
			Source:     phi.SourceRegex,
			Priority:   m.Priority,
		})
	}
	return spans, nil
}

// offsetIndex maps byte offsets to rune offsets with one linear scan, so
// spans report character positions that survive accented text.
type offsetIndex struct {
	byteToRune map[int]int
	total      int
}

func newOffsetIndex(text string) *offsetIndex {
	idx := &offsetIndex{byteToRune: make(map[int]int, len(text)+1)}
	runeCount := 0
	for b := range text {
		idx.byteToRune[b] = runeCount
		runeCount++
	}
	idx.byteToRune[len(text)] = runeCount
	idx.total = runeCount
	return idx
}

func (o *offsetIndex) runeAt(byteOff int) int {
	if r, ok := o.byteToRune[byteOff]; ok {
		return r
	}
	// Offset inside a multi-byte rune (defensive for specialist spans):
	// walk back to the rune start.
	for b := byteOff - 1; b >= 0; b-- {
		if r, ok := o.byteToRune[b]; ok {
			return r
		}
	}
	return 0
}

// RuneLen returns the text length in characters.
func RuneLen(text string) int { return utf8.RuneCountInString(text) }
