// Package engine is the stateless de-identification facade: one synchronous
// transform composing detection, resolution, tokenization, the reversible
// vault, confidence aggregation, and audit emission. The engine keeps no
// state between calls; the only shared collaborators are the key resolver
// and the audit emitter, both safe for concurrent use.
package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/velamed/velamed/internal/audit"
	"github.com/velamed/velamed/internal/detect"
	"github.com/velamed/velamed/internal/phi"
	"github.com/velamed/velamed/internal/resolve"
	"github.com/velamed/velamed/internal/telemetry"
	"github.com/velamed/velamed/internal/tokenize"
	"github.com/velamed/velamed/internal/vault"
)

// Version identifies the engine build stamped into metadata and audit
// records.
const Version = "1.0.0"

// DefaultMaxTextBytes caps input size. Very large documents should be
// chunked by the caller; the engine only validates, it does not split.
const DefaultMaxTextBytes = 1 << 20

// Options select per-call behavior. Key is an opaque handle resolved by the
// keyring collaborator; it is required when Reversible is true.
type Options struct {
	Reversible bool
	AuditLog   bool
	Key        string
}

// Request is one de-identification call.
type Request struct {
	Text      string
	Options   Options
	ProjectID string
	RequestID string
}

// Metadata describes how the response was produced.
type Metadata struct {
	Method    string   `json:"method"`
	Version   string   `json:"version"`
	Timestamp string   `json:"timestamp"`
	RequestID string   `json:"requestId"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Response is the transform result. TokenMapExport is present iff
// reversible mode was requested (and, by fail-closed encryption, succeeded).
type Response struct {
	Deidentified   string        `json:"deidentified"`
	Summary        Summary       `json:"summary"`
	TokenMapExport *vault.Export `json:"tokenMapExport,omitempty"`
	Metadata       Metadata      `json:"metadata"`
}

// Engine wires the pipeline stages together.
type Engine struct {
	detector     *detect.Detector
	keys         vault.KeyResolver
	emitter      *audit.Emitter
	telemetry    *telemetry.Provider
	log          zerolog.Logger
	maxTextBytes int
}

// Config holds the engine's collaborators.
type Config struct {
	Detector     *detect.Detector
	Keys         vault.KeyResolver
	Emitter      *audit.Emitter
	Telemetry    *telemetry.Provider
	Logger       zerolog.Logger
	MaxTextBytes int
}

// New builds an Engine. Detector is required; the other collaborators are
// optional and disable their stage when nil.
func New(cfg Config) *Engine {
	maxBytes := cfg.MaxTextBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTextBytes
	}
	return &Engine{
		detector:     cfg.Detector,
		keys:         cfg.Keys,
		emitter:      cfg.Emitter,
		telemetry:    cfg.Telemetry,
		log:          cfg.Logger,
		maxTextBytes: maxBytes,
	}
}

// Deidentify runs the fixed pipeline: validate → detect → resolve →
// tokenize (+vault) → aggregate → audit → respond. The call either
// completes all stages or returns an error; a cancelled or failed call
// never yields a partially redacted document.
func (e *Engine) Deidentify(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, e.fail(ctx, req, requestID, &InvalidInputError{Reason: "text is empty"})
	}
	if len(req.Text) > e.maxTextBytes {
		return nil, e.fail(ctx, req, requestID, &InvalidInputError{Reason: "text exceeds maximum size"})
	}

	det, err := e.detector.Run(ctx, req.Text)
	if err != nil {
		return nil, e.fail(ctx, req, requestID, err)
	}
	warnings := append([]string(nil), det.Warnings...)

	if err := ctx.Err(); err != nil {
		return nil, e.fail(ctx, req, requestID, err)
	}
	resolved := resolve.Resolve(det.Candidates)

	table := tokenize.NewTable()
	redacted := tokenize.Apply(req.Text, resolved, table)

	var export *vault.Export
	if req.Options.Reversible {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(ctx, req, requestID, err)
		}
		export, err = vault.Seal(ctx, e.keys, req.Options.Key, table.Mappings())
		if err != nil {
			// Fail closed: reversibility was requested and cannot be
			// honored, so the redacted text is withheld too.
			return nil, e.fail(ctx, req, requestID, &EncryptionError{Err: err})
		}
	}

	summary := aggregate(resolved)

	if req.Options.AuditLog {
		warnings = append(warnings, e.emitAudit(ctx, req, requestID, summary.TotalDetected, audit.OutcomeSuccess)...)
	}

	e.observe(ctx, resolved, "success", time.Since(start))

	return &Response{
		Deidentified:   redacted,
		Summary:        summary,
		TokenMapExport: export,
		Metadata: Metadata{
			Method:    audit.Method,
			Version:   Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: requestID,
			Warnings:  warnings,
		},
	}, nil
}

// Reidentify restores original values in previously de-identified text from
// an encrypted token map. Tokens are replaced in sorted order so the result
// is deterministic.
func (e *Engine) Reidentify(ctx context.Context, text string, export *vault.Export) (string, error) {
	values, err := vault.Open(ctx, e.keys, export)
	if err != nil {
		return "", &EncryptionError{Err: err}
	}
	tokens := make([]string, 0, len(values))
	for tok := range values {
		tokens = append(tokens, tok)
	}
	// Longest token first, so [NAME_12] is never clobbered by [NAME_1].
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	for _, tok := range tokens {
		text = strings.ReplaceAll(text, tok, values[tok])
	}
	return text, nil
}

// emitAudit enqueues a content-free record; failures are fail-open and come
// back as response warnings.
func (e *Engine) emitAudit(ctx context.Context, req Request, requestID string, totalDetected int, outcome string) []string {
	if e.emitter == nil {
		return []string{WarnAuditSinkUnconfigured}
	}
	rec := audit.NewRecord(Version, requestID, req.ProjectID, req.Options.Reversible, totalDetected, outcome)
	if !e.emitter.Emit(ctx, rec) {
		return []string{WarnAuditEnqueueFailed}
	}
	return nil
}

// fail records the failed call (audit outcome "error", still content-free)
// and passes the error through.
func (e *Engine) fail(ctx context.Context, req Request, requestID string, err error) error {
	if req.Options.AuditLog {
		_ = e.emitAudit(ctx, req, requestID, 0, audit.OutcomeError)
	}
	e.observe(ctx, nil, "error", 0)
	e.log.Debug().Str("request_id", requestID).Err(err).Msg("deidentify failed")
	return err
}

func (e *Engine) observe(ctx context.Context, spans []phi.Span, outcome string, dur time.Duration) {
	if e.telemetry == nil {
		return
	}
	e.telemetry.RecordRequest(ctx, outcome, dur)
	counts := make(map[string]int64, 8)
	for _, s := range spans {
		counts[string(s.Category)]++
	}
	for cat, n := range counts {
		e.telemetry.RecordSpans(ctx, cat, n)
	}
}
