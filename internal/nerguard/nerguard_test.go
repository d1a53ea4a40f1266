package nerguard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/velamed/velamed/internal/phi"
)

func writeVocab(t *testing.T, dir string, tokens []string) string {
	t.Helper()
	path := filepath.Join(dir, "vocab.txt")
	var data []byte
	for _, tok := range tokens {
		data = append(data, tok...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	return path
}

func TestWordPieceEncodeWithOffsets(t *testing.T) {
	dir := t.TempDir()
	path := writeVocab(t, dir, []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"maria", "gonzalez", "paciente", "##lez",
	})
	tok, err := LoadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	text := "paciente maria gonzalez"
	ids, attn, offsets := tok.EncodeWithOffsets(text, 16)
	if len(ids) != 16 || len(attn) != 16 || len(offsets) != 16 {
		t.Fatalf("lengths = %d/%d/%d, want 16", len(ids), len(attn), len(offsets))
	}

	// [CLS] paciente maria gonzalez [SEP] pad...
	if ids[0] != 2 || ids[4] != 3 {
		t.Fatalf("special tokens wrong: %v", ids[:6])
	}
	if offsets[0].Start != -1 || offsets[4].Start != -1 {
		t.Fatalf("special token offsets not sentinel: %+v", offsets[:6])
	}

	wantOffsets := []TokenOffset{
		{Start: 0, End: 8},   // paciente
		{Start: 9, End: 14},  // maria
		{Start: 15, End: 23}, // gonzalez
	}
	for i, want := range wantOffsets {
		got := offsets[i+1]
		if got != want {
			t.Fatalf("token %d offset = %+v, want %+v", i, got, want)
		}
		if text[got.Start:got.End] == "" {
			t.Fatalf("token %d covers empty range", i)
		}
	}

	for i := 0; i < 5; i++ {
		if attn[i] != 1 {
			t.Fatalf("attention[%d] = %d", i, attn[i])
		}
	}
	if attn[5] != 0 {
		t.Fatalf("padding attended: %v", attn[:8])
	}
}

func TestWordPieceContinuationOffsets(t *testing.T) {
	dir := t.TempDir()
	path := writeVocab(t, dir, []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"gonza", "##lez",
	})
	tok, err := LoadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	_, _, offsets := tok.EncodeWithOffsets("gonzalez", 8)
	// [CLS] gonza ##lez [SEP]
	if offsets[1] != (TokenOffset{Start: 0, End: 5}) {
		t.Fatalf("first piece offset = %+v", offsets[1])
	}
	if offsets[2] != (TokenOffset{Start: 5, End: 8}) {
		t.Fatalf("continuation piece offset = %+v", offsets[2])
	}
}

func TestWordPieceUnknownWord(t *testing.T) {
	dir := t.TempDir()
	path := writeVocab(t, dir, []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "hola"})
	tok, err := LoadWordPieceTokenizer(path)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}

	ids, _, offsets := tok.EncodeWithOffsets("zzz hola", 8)
	if ids[1] != 1 {
		t.Fatalf("unknown word id = %d, want [UNK]", ids[1])
	}
	if offsets[1] != (TokenOffset{Start: 0, End: 3}) {
		t.Fatalf("unknown word offset = %+v", offsets[1])
	}
	if ids[2] != 4 {
		t.Fatalf("known word id = %d", ids[2])
	}
}

func TestDecodeAssemblesNameSpans(t *testing.T) {
	m := &Model{
		labels: []string{"O", "B-NAME", "I-NAME"},
		seqLen: 8,
	}

	// Tokens: [CLS] maria gonzalez alta [SEP] pad pad pad
	offsets := []TokenOffset{
		{-1, -1}, {0, 5}, {6, 14}, {15, 19}, {-1, -1}, {-1, -1}, {-1, -1}, {-1, -1},
	}
	attn := []int64{1, 1, 1, 1, 1, 0, 0, 0}

	logits := make([]float32, 8*3)
	set := func(tok, label int) {
		for l := 0; l < 3; l++ {
			logits[tok*3+l] = -8
		}
		logits[tok*3+label] = 8
	}
	set(0, 0) // CLS → O (ignored via offset)
	set(1, 1) // maria → B-NAME
	set(2, 2) // gonzalez → I-NAME
	set(3, 0) // alta → O
	set(4, 0)

	spans := m.decode(logits, attn, offsets)
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1: %+v", len(spans), spans)
	}
	s := spans[0]
	if s.Category != phi.CategoryName || s.Source != phi.SourceNER {
		t.Fatalf("span typing wrong: %+v", s)
	}
	if s.ByteStart != 0 || s.ByteEnd != 14 {
		t.Fatalf("span range = [%d,%d), want [0,14)", s.ByteStart, s.ByteEnd)
	}
	if s.Confidence < minNameScore || s.Confidence > 0.99 {
		t.Fatalf("confidence = %v", s.Confidence)
	}
}

func TestDecodeSeparatesNonAdjacentNames(t *testing.T) {
	m := &Model{
		labels: []string{"O", "B-NAME", "I-NAME"},
		seqLen: 8,
	}
	offsets := []TokenOffset{
		{-1, -1}, {0, 4}, {5, 9}, {10, 15}, {-1, -1}, {-1, -1}, {-1, -1}, {-1, -1},
	}
	attn := []int64{1, 1, 1, 1, 1, 0, 0, 0}

	logits := make([]float32, 8*3)
	set := func(tok, label int) {
		for l := 0; l < 3; l++ {
			logits[tok*3+l] = -8
		}
		logits[tok*3+label] = 8
	}
	set(1, 1) // first name
	set(2, 0) // other word
	set(3, 1) // second name

	spans := m.decode(logits, attn, offsets)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(spans), spans)
	}
	if spans[0].ByteEnd > spans[1].ByteStart {
		t.Fatalf("spans overlap: %+v", spans)
	}
}

func TestVerifyBundle(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("model-bytes")
	if err := os.WriteFile(filepath.Join(dir, "nerguard_v1.onnx"), payload, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	sum := sha256.Sum256(payload)

	manifest := fmt.Sprintf(`model: nerguard_v1
version: "1"
files:
  - path: nerguard_v1.onnx
    sha256: %s
    size: %d
`, hex.EncodeToString(sum[:]), len(payload))
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if err := VerifyBundle(dir); err != nil {
		t.Fatalf("VerifyBundle: %v", err)
	}

	// Corrupt the model file; verification must now fail.
	if err := os.WriteFile(filepath.Join(dir, "nerguard_v1.onnx"), []byte("tampered..."), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := VerifyBundle(dir); err == nil {
		t.Fatal("VerifyBundle accepted a tampered file")
	}
}

func TestBundleFilesPresent(t *testing.T) {
	dir := t.TempDir()
	if BundleFilesPresent(dir) {
		t.Fatal("empty dir reported complete")
	}
	for _, p := range []string{"nerguard_v1.onnx", "label_map.json", "tokenizer/vocab.txt"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if !BundleFilesPresent(dir) {
		t.Fatal("complete dir reported missing files")
	}
}
