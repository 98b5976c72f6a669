package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	contract "github.com/questmind/questmind/api/wasm"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest inside a bundle directory.
const ManifestFile = "manifest.yaml"

// Build targets a bundle can declare.
const (
	// TargetWASIP1 modules are run by this host through wazero.
	TargetWASIP1 = "wasip1"
	// TargetJS modules need wasm_exec.js and a JavaScript engine; they are
	// listed but not run.
	TargetJS = "js"
)

// Manifest represents the bundle manifest.yaml structure.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Target      string     `yaml:"target"`
	Wasm        WasmConfig `yaml:"wasm"`
	Exports     []string   `yaml:"exports"`
	Author      string     `yaml:"author"`
	License     string     `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig locates the Wasm module of a bundle.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB, informational
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	switch m.Target {
	case TargetWASIP1, TargetJS:
	case "":
		return m.invalid("target", "target is required")
	default:
		return m.invalid("target", fmt.Sprintf("unsupported target: %s (must be one of: %s, %s)", m.Target, TargetWASIP1, TargetJS))
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	if len(m.Exports) == 0 {
		return m.invalid("exports", "at least one export is required")
	}

	seen := make(map[string]bool, len(m.Exports))
	for _, name := range m.Exports {
		if _, ok := contract.Lookup(name); !ok {
			return m.invalid("exports", fmt.Sprintf("unknown export: %s (must be one of: %s)", name, knownExports()))
		}
		if seen[name] {
			return m.invalid("exports", fmt.Sprintf("duplicate export: %s", name))
		}
		seen[name] = true
	}

	// Modules this host runs must implement the whole surface, so that
	// instantiation can always run initialize and marshal text.
	if m.Target == TargetWASIP1 {
		for _, sig := range contract.Exports {
			if !seen[sig.Name] {
				return m.invalid("exports", fmt.Sprintf("%s bundles must export %s (must export all of: %s)", TargetWASIP1, sig.Name, knownExports()))
			}
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func (m *Manifest) invalid(field, msg string) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: msg,
	}
}

func knownExports() string {
	names := make([]string, len(contract.Exports))
	for i, s := range contract.Exports {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
