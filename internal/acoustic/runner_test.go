package acoustic

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogitShape(t *testing.T) {
	t.Run("rank 2", func(t *testing.T) {
		steps, vocab, err := logitShape([]int64{7, 29})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if steps != 7 || vocab != 29 {
			t.Fatalf("got steps=%d vocab=%d", steps, vocab)
		}
	})

	t.Run("rank 3 batch 1", func(t *testing.T) {
		steps, vocab, err := logitShape([]int64{1, 7, 29})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if steps != 7 || vocab != 29 {
			t.Fatalf("got steps=%d vocab=%d", steps, vocab)
		}
	})

	t.Run("rejects batch > 1", func(t *testing.T) {
		_, _, err := logitShape([]int64{2, 7, 29})
		if err == nil {
			t.Fatal("expected error for batch size 2")
		}
	})

	t.Run("rejects unsupported rank", func(t *testing.T) {
		_, _, err := logitShape([]int64{7})
		if err == nil {
			t.Fatal("expected error for rank 1")
		}
	})
}

func TestNewRunner_RequiresNames(t *testing.T) {
	_, err := NewRunner(Config{ManifestPath: "manifest.json", GraphName: "acoustic"})
	if err == nil {
		t.Fatal("expected error when input/output names are missing")
	}
}

func TestNewRunner_RejectsMissingGraph(t *testing.T) {
	identityPath := filepath.Join("testdata", "identity_float32.onnx")
	if _, err := os.Stat(identityPath); err != nil {
		t.Skip("no identity test model available")
	}

	tmp := t.TempDir()
	data, err := os.ReadFile(identityPath)
	if err != nil {
		t.Fatalf("read identity model: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "identity.onnx"), data, 0o644); err != nil {
		t.Fatalf("write identity model: %v", err)
	}

	manifest := `{"graphs":[{"name":"other","filename":"identity.onnx","inputs":[],"outputs":[]}]}`
	if err := os.WriteFile(filepath.Join(tmp, "manifest.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	_, err = NewRunner(Config{
		ManifestPath: filepath.Join(tmp, "manifest.json"),
		GraphName:    "acoustic",
		InputName:    "features",
		OutputName:   "logits",
	})
	if err == nil {
		t.Fatal("expected error for graph not present in manifest")
	}
}

func TestRunner_EmissionsWithoutFeaturesFails(t *testing.T) {
	r := &Runner{graphName: "acoustic", inputName: "features", outputName: "logits"}
	_, _, _, err := r.Emissions()
	if err == nil {
		t.Fatal("expected error when SetFeatures was never called")
	}
}
