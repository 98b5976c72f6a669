package bundle

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseManifest_Valid(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "questmind", guestManifest, []byte("\x00asm"))

	manifest, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	want := &Manifest{
		Name:        "questmind",
		Version:     "1.0.0",
		Description: "QuestMind binding surface",
		Target:      TargetWASIP1,
		Wasm:        WasmConfig{File: "questmind.wasm"},
		Exports:     []string{"initialize", "greet", "add", "process_text", "allocate", "deallocate"},
		Author:      "QuestMind",
		License:     "MIT",
	}
	if diff := cmp.Diff(want, manifest, cmpopts.IgnoreUnexported(Manifest{})); diff != "" {
		t.Errorf("ParseManifest() mismatch (-want +got):\n%s", diff)
	}

	if manifest.Dir() != dir {
		t.Errorf("Dir() = %s, want %s", manifest.Dir(), dir)
	}
	if manifest.WasmPath() != filepath.Join(dir, "questmind.wasm") {
		t.Errorf("WasmPath() = %s", manifest.WasmPath())
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("ParseManifest() should fail for nonexistent directory")
	}

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected ManifestNotFoundError, got %T", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "broken", "name: [unterminated\n", nil)

	_, err := ParseManifest(dir)
	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ManifestParseError, got %T (%v)", err, err)
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
	}{
		{
			name:     "missing name",
			manifest: strings.Replace(guestManifest, "name: questmind\n", "", 1),
			field:    "name",
		},
		{
			name:     "missing version",
			manifest: strings.Replace(guestManifest, "version: 1.0.0\n", "", 1),
			field:    "version",
		},
		{
			name:     "missing target",
			manifest: strings.Replace(guestManifest, "target: wasip1\n", "", 1),
			field:    "target",
		},
		{
			name:     "unknown target",
			manifest: strings.Replace(guestManifest, "target: wasip1", "target: wasip2", 1),
			field:    "target",
		},
		{
			name:     "missing wasm file",
			manifest: strings.Replace(guestManifest, "  file: questmind.wasm\n", "", 1),
			field:    "wasm.file",
		},
		{
			name:     "no exports",
			manifest: "name: q\nversion: 1\ntarget: js\nwasm:\n  file: questmind.wasm\n",
			field:    "exports",
		},
		{
			name:     "unknown export",
			manifest: strings.Replace(guestManifest, "  - greet\n", "  - farewell\n", 1),
			field:    "exports",
		},
		{
			name:     "duplicate export",
			manifest: strings.Replace(guestManifest, "  - greet\n", "  - greet\n  - greet\n", 1),
			field:    "exports",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeBundle(t, t.TempDir(), "b", tt.manifest, []byte("\x00asm"))

			_, err := ParseManifest(dir)
			var validationErr *ManifestValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ManifestValidationError, got %T (%v)", err, err)
			}
			if validationErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", validationErr.Field, tt.field)
			}
		})
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	dir := writeBundle(t, t.TempDir(), "questmind", guestManifest, nil)

	_, err := ParseManifest(dir)
	var wasmErr *WasmNotFoundError
	if !errors.As(err, &wasmErr) {
		t.Fatalf("expected WasmNotFoundError, got %T (%v)", err, err)
	}
	if wasmErr.WasmFile != "questmind.wasm" {
		t.Errorf("WasmFile = %s, want questmind.wasm", wasmErr.WasmFile)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NotFoundError{BundleName: "q"}, "bundle 'q' not found"},
		{&AlreadyRegisteredError{BundleName: "q"}, "bundle 'q' is already registered"},
		{&UnsupportedTargetError{BundleName: "q", Target: TargetJS}, "bundle 'q' targets js and cannot be run by this host"},
		{&LoadError{BundleName: "q", Err: errors.New("boom")}, "failed to load bundle 'q': boom"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseManifest_JSAllowsPartialSurface(t *testing.T) {
	manifest := "name: web\nversion: 1.0.0\ntarget: js\nwasm:\n  file: questmind.wasm\nexports: [greet, add]\n"
	dir := writeBundle(t, t.TempDir(), "web", manifest, []byte("js/wasm"))

	m, err := ParseManifest(dir)
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}
	if len(m.Exports) != 2 {
		t.Errorf("expected 2 exports, got %v", m.Exports)
	}
}
