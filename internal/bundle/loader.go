package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/questmind/questmind/internal/wasm"
	"go.uber.org/zap"
)

// Loader handles loading bundles from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new bundle loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "bundle-loader")),
	}
}

// LoadBundle loads a single bundle from a directory. Modules for the wasip1
// target are compiled and checked against the exports their manifest declares.
func (l *Loader) LoadBundle(ctx context.Context, dir string) (*Bundle, error) {
	l.logger.Debug("Loading bundle", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading bundle",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("target", manifest.Target),
	)

	b := &Bundle{
		Manifest: manifest,
		LoadedAt: time.Now(),
	}

	if manifest.Target != TargetWASIP1 {
		l.logger.Info("Bundle registered without compiling",
			zap.String("name", manifest.Name),
			zap.String("target", manifest.Target),
		)
		return b, nil
	}

	// Compiled modules are cached under the bundle name.
	compiled, err := l.moduleLoader.LoadNamedModuleFromFile(ctx, manifest.Name, manifest.WasmPath())
	if err != nil {
		return nil, &LoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	if err := wasm.VerifyExports(compiled, manifest.Exports); err != nil {
		return nil, &LoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}
	b.Compiled = compiled

	l.logger.Info("Bundle loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Strings("exports", manifest.Exports),
	)

	return b, nil
}

// Discover scans directories for bundles. Each subdirectory of a path, and
// the path itself if it holds a manifest, is tried as a bundle.
func (l *Loader) Discover(ctx context.Context, paths []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning bundle directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Bundle path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		dirs := []string{}
		if _, err := os.Stat(filepath.Join(basePath, ManifestFile)); err == nil {
			dirs = append(dirs, basePath)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				dirs = append(dirs, filepath.Join(basePath, entry.Name()))
			}
		}

		for _, dir := range dirs {
			b, err := l.LoadBundle(ctx, dir)
			if err != nil {
				l.logger.Error("Failed to load bundle",
					zap.String("dir", dir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			bundles = append(bundles, b)
		}
	}

	if len(bundles) > 0 && len(errs) > 0 {
		l.logger.Warn("Some bundles failed to load",
			zap.Int("loaded", len(bundles)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(bundles) == 0 {
		return nil, errors.Join(append([]error{&NoBundlesFoundError{Paths: paths}}, errs...)...)
	}

	return bundles, nil
}
