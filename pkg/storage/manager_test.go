package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.Count() != 0 {
		t.Error("Expected initial count to be 0")
	}
	if manager.Exists("img-1.png") {
		t.Error("Expected Exists to return false for missing file")
	}

	testData := []byte("image bytes")
	if err := manager.Save(bytes.NewReader(testData), "img-1.png"); err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tempDir, "img-1.png"))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.Exists("img-1.png") {
		t.Error("Expected Exists to return true after save")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected count 1, got %d", manager.Count())
	}
}

func TestManagerScansExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tempDir, "existing.webp"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(tempDir, "subdir"), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if !manager.Exists("existing.webp") {
		t.Error("Expected scan to pick up existing file")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected count 1 (directories ignored), got %d", manager.Count())
	}
}

func TestManagerLeavesNoTempFiles(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := manager.Save(bytes.NewReader([]byte("data")), "a.jpg"); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.jpg" {
		t.Errorf("Expected only a.jpg in directory, got %v", entries)
	}
}

func TestManagerCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	nested := filepath.Join(tempDir, "gallery", "images")

	if _, err := NewManager(nested); err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Error("Expected images directory to be created")
	}
}
