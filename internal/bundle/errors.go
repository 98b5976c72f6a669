package bundle

import (
	"fmt"
)

// ManifestNotFoundError occurs when a bundle directory has no manifest.yaml.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml cannot be parsed as valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when manifest.yaml fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("manifest validation failed at '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the manifest names a Wasm file that does not exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("Wasm file '%s' not found (referenced in manifest '%s')",
		e.WasmFile, e.ManifestPath)
}

// LoadError occurs when a bundle's module cannot be compiled or verified.
type LoadError struct {
	BundleName string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load bundle '%s': %v", e.BundleName, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NotFoundError occurs when a bundle is not in the registry.
type NotFoundError struct {
	BundleName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bundle '%s' not found", e.BundleName)
}

// AlreadyRegisteredError occurs when two bundles share a name.
type AlreadyRegisteredError struct {
	BundleName string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("bundle '%s' is already registered", e.BundleName)
}

// NoBundlesFoundError occurs when no bundle loads from the configured paths.
type NoBundlesFoundError struct {
	Paths []string
}

func (e *NoBundlesFoundError) Error() string {
	return fmt.Sprintf("no bundles found in paths: %v", e.Paths)
}

// UnsupportedTargetError occurs when instantiating a bundle built for another host.
type UnsupportedTargetError struct {
	BundleName string
	Target     string
}

func (e *UnsupportedTargetError) Error() string {
	return fmt.Sprintf("bundle '%s' targets %s and cannot be run by this host", e.BundleName, e.Target)
}
