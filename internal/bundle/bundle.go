// Package bundle loads QuestMind module bundles: a directory holding a
// manifest.yaml and the .wasm file it describes.
package bundle

import (
	"slices"
	"time"

	"github.com/questmind/questmind/internal/wasm"
)

// Bundle is a loaded bundle with its manifest and, for runnable targets,
// its compiled Wasm module.
type Bundle struct {
	// Manifest is the parsed bundle metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module; nil for targets this host cannot run
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the bundle was loaded
	LoadedAt time.Time
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Target returns the platform the module was built for.
func (b *Bundle) Target() string {
	return b.Manifest.Target
}

// Version returns the bundle version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Exports returns the functions the manifest declares.
func (b *Bundle) Exports() []string {
	return b.Manifest.Exports
}

// Provides reports whether the manifest declares export name.
func (b *Bundle) Provides(name string) bool {
	return slices.Contains(b.Manifest.Exports, name)
}

// Runnable reports whether this host can instantiate the bundle.
func (b *Bundle) Runnable() bool {
	return b.Manifest.Target == TargetWASIP1 && b.Compiled != nil
}
