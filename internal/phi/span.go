package phi

// Detection sources.
const (
	SourceRegex = "regex"
	SourceNER   = "ml_ner"
)

// Span is a detected identifier occurrence. Start/End are character (rune)
// offsets into the input; ByteStart/ByteEnd are the matching byte offsets,
// kept so the tokenizer can splice the original string without re-scanning.
// Spans are transient: they exist only inside a single engine invocation and
// are never persisted or logged with their Value.
type Span struct {
	Category   Category
	Start      int
	End        int
	ByteStart  int
	ByteEnd    int
	Value      string
	Confidence float64
	Source     string
	Priority   int
}

// Len returns the span length in characters.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and other cover any common character.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}
