package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/questmind/questmind/internal/config"
	"github.com/questmind/questmind/internal/wasm"
	"go.uber.org/zap"
)

// Manager manages bundle lifecycle.
type Manager struct {
	cfg         *config.Config
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new bundle manager.
func NewManager(
	cfg *config.Config,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, hostFuncs, logger),
		logger:      logger.With(zap.String("component", "bundle-manager")),
	}
}

// LoadAll discovers and loads all bundles from the configured paths.
// Finding none is not an error; the registry is simply empty.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("bundles already loaded")
	}

	m.logger.Info("Loading bundles",
		zap.Strings("paths", m.cfg.BundlePaths),
	)

	bundles, err := m.loader.Discover(ctx, m.cfg.BundlePaths)
	if err != nil {
		var none *NoBundlesFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No bundles found in configured paths",
				zap.Strings("paths", m.cfg.BundlePaths),
				zap.Error(err),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, b := range bundles {
		if err := m.registry.Register(b); err != nil {
			m.logger.Error("Failed to register bundle",
				zap.String("name", b.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Bundles loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// Get retrieves a bundle by name.
func (m *Manager) Get(name string) (*Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{BundleName: name}
	}

	return b, nil
}

// Instantiate creates a new, initialized instance of a bundle. Log lines
// the guest writes go to sink, or to the host default when sink is nil.
func (m *Manager) Instantiate(ctx context.Context, name string, sink wasm.LogSink) (*wasm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{BundleName: name}
	}
	if !b.Runnable() {
		return nil, &UnsupportedTargetError{BundleName: name, Target: b.Target()}
	}

	return m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: b.Compiled.Name,
		Sink:       sink,
	})
}

// Shutdown closes every instance and the runtime.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down bundle manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Bundle manager shutdown complete")
	return nil
}

// Registry returns the bundle registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether bundles have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
