package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

const guestManifest = `name: questmind
version: 1.0.0
description: QuestMind binding surface
target: wasip1
wasm:
  file: questmind.wasm
exports:
  - initialize
  - greet
  - add
  - process_text
  - allocate
  - deallocate
author: QuestMind
license: MIT
`

// writeBundle lays out a bundle directory under root and returns its path.
// A nil module skips writing the .wasm file.
func writeBundle(t *testing.T, root, name, manifest string, module []byte) string {
	t.Helper()

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("WriteFile(manifest) failed: %v", err)
	}
	if module != nil {
		if err := os.WriteFile(filepath.Join(dir, "questmind.wasm"), module, 0644); err != nil {
			t.Fatalf("WriteFile(wasm) failed: %v", err)
		}
	}
	return dir
}
