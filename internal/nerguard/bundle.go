// Package nerguard is the optional ONNX name specialist. It runs a token
// classification model over the text and emits NAME candidates that the
// pattern library cannot reach (lowercase names, unusual orderings). The
// layer is best-effort: any failure surfaces as a detection warning, never
// as a request failure.
package nerguard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile describes one file entry in manifest.yaml.
type ManifestFile struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256"`
	Size   int64  `yaml:"size"`
}

// Manifest mirrors manifest.yaml at the bundle root.
type Manifest struct {
	Model   string         `yaml:"model"`
	Version string         `yaml:"version"`
	Files   []ManifestFile `yaml:"files"`
}

// LoadManifest reads and decodes manifest.yaml from the bundle dir.
func LoadManifest(bundleDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(bundleDir, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// VerifyBundle checks size and sha256 for every file the manifest lists. A
// bundle that fails verification is never loaded.
func VerifyBundle(bundleDir string) error {
	if strings.TrimSpace(bundleDir) == "" {
		return fmt.Errorf("bundle dir is empty")
	}
	m, err := LoadManifest(bundleDir)
	if err != nil {
		return err
	}
	for _, f := range m.Files {
		local := filepath.Join(bundleDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(local)
		if err != nil {
			return fmt.Errorf("stat %s: %w", f.Path, err)
		}
		if f.Size > 0 && info.Size() != f.Size {
			return fmt.Errorf("size mismatch for %s: expected %d got %d", f.Path, f.Size, info.Size())
		}
		h := sha256.New()
		fh, err := os.Open(local)
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Path, err)
		}
		if _, err := io.Copy(h, fh); err != nil {
			fh.Close()
			return fmt.Errorf("hash %s: %w", f.Path, err)
		}
		fh.Close()
		sum := hex.EncodeToString(h.Sum(nil))
		if f.SHA256 != "" && !strings.EqualFold(sum, f.SHA256) {
			return fmt.Errorf("sha256 mismatch for %s", f.Path)
		}
	}
	return nil
}

// BundleFilesPresent checks that the key files exist on disk.
func BundleFilesPresent(bundleDir string) bool {
	required := []string{
		"nerguard_v1.onnx",
		"label_map.json",
		filepath.Join("tokenizer", "vocab.txt"),
	}
	for _, p := range required {
		if _, err := os.Stat(filepath.Join(bundleDir, p)); err != nil {
			return false
		}
	}
	return true
}
