package nerguard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/velamed/velamed/internal/phi"
)

// namePriority ranks model-sourced NAME spans against the regex library
// during overlap resolution.
const namePriority = 50

// minNameScore drops low-certainty token predictions before span assembly.
const minNameScore = 0.5

// Model wraps the ONNX token-classification session and tokenizer. It
// implements the detector's Specialist interface.
type Model struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	labels    []string
	seqLen    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// Load verifies the bundle and initializes the ONNX session and tokenizer.
func Load(bundleDir string, seqLen int) (*Model, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if seqLen <= 0 {
		seqLen = 256
	}
	if !BundleFilesPresent(bundleDir) {
		return nil, fmt.Errorf("bundle files missing under %s", bundleDir)
	}
	if err := VerifyBundle(bundleDir); err != nil {
		return nil, fmt.Errorf("verify bundle: %w", err)
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	labels, err := loadLabels(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	tokenizer, err := LoadWordPieceTokenizer(filepath.Join(bundleDir, "tokenizer", "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	outputShape := ort.NewShape(1, int64(seqLen), int64(len(labels)))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		filepath.Join(bundleDir, "nerguard_v1.onnx"),
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Model{
		session:       session,
		tokenizer:     tokenizer,
		labels:        labels,
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// Detect runs token classification and assembles contiguous B-/I- name
// predictions into byte-offset spans. The session is single-slot, so calls
// serialize on the model mutex.
func (m *Model) Detect(ctx context.Context, text string) ([]phi.Span, error) {
	if m == nil || m.session == nil || m.tokenizer == nil {
		return nil, errors.New("name model not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, attn, offsets := m.tokenizer.EncodeWithOffsets(text, m.seqLen)

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), attn)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	return m.decode(m.output.GetData(), attn, offsets), nil
}

// Close releases the ONNX session and tensors.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	for _, t := range []ort.Value{m.inputIDs, m.attentionMask, m.output} {
		if t != nil {
			t.Destroy()
		}
	}
	return nil
}

type tokenPrediction struct {
	label string
	score float64
	off   TokenOffset
}

// decode turns per-token logits into NAME spans. Adjacent begin/inside
// predictions merge into one span covering the underlying byte range; the
// span confidence is the mean token probability, capped at 0.99.
func (m *Model) decode(logits []float32, attn []int64, offsets []TokenOffset) []phi.Span {
	n := len(m.labels)
	if n == 0 {
		return nil
	}

	preds := make([]tokenPrediction, 0, m.seqLen)
	for i := 0; i < m.seqLen; i++ {
		if i >= len(attn) || attn[i] == 0 || i >= len(offsets) || offsets[i].Start < 0 {
			continue
		}
		row := logits[i*n : (i+1)*n]
		best, score := argmaxSoftmax(row)
		preds = append(preds, tokenPrediction{
			label: m.labels[best],
			score: score,
			off:   offsets[i],
		})
	}

	var spans []phi.Span
	var curStart, curEnd int
	var curScores []float64
	open := false

	flush := func() {
		if !open {
			return
		}
		open = false
		var sum float64
		for _, s := range curScores {
			sum += s
		}
		conf := sum / float64(len(curScores))
		if conf > 0.99 {
			conf = 0.99
		}
		if conf < minNameScore {
			return
		}
		spans = append(spans, phi.Span{
			Category:   phi.CategoryName,
			ByteStart:  curStart,
			ByteEnd:    curEnd,
			Confidence: conf,
			Source:     phi.SourceNER,
			Priority:   namePriority,
		})
	}

	for _, p := range preds {
		switch {
		case isBegin(p.label):
			flush()
			open = true
			curStart, curEnd = p.off.Start, p.off.End
			curScores = []float64{p.score}
		case isInside(p.label) && open && p.off.Start >= curEnd:
			curEnd = p.off.End
			curScores = append(curScores, p.score)
		case isInside(p.label) && !open:
			// Tolerate I- without a preceding B-: treat as a new span.
			open = true
			curStart, curEnd = p.off.Start, p.off.End
			curScores = []float64{p.score}
		default:
			flush()
			curScores = nil
		}
	}
	flush()

	return spans
}

func isBegin(label string) bool {
	u := strings.ToUpper(label)
	return strings.HasPrefix(u, "B-NAME") || strings.HasPrefix(u, "B-PER")
}

func isInside(label string) bool {
	u := strings.ToUpper(label)
	return strings.HasPrefix(u, "I-NAME") || strings.HasPrefix(u, "I-PER")
}

func argmaxSoftmax(row []float32) (int, float64) {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	var denom float64
	maxLogit := float64(row[best])
	for _, v := range row {
		denom += math.Exp(float64(v) - maxLogit)
	}
	return best, 1.0 / denom
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// resolveSharedLibraryPath attempts to locate a platform-specific onnxruntime
// shared library. ONNXRUNTIME_SHARED_LIBRARY_PATH wins when set; otherwise we
// probe common names/locations.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
