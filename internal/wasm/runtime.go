package wasm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	contract "github.com/questmind/questmind/api/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Runtime manages the wazero runtime lifecycle.
// One Runtime is created per process and shared by every module it loads.
type Runtime struct {
	// wazero runtime (singleton)
	runtime wazero.Runtime

	// Compiled module cache (key: module name/path -> value: *CompiledModule)
	// This avoids recompiling the same Wasm binary multiple times
	modules sync.Map

	// Active module instances (for cleanup on shutdown)
	// key: instance ID -> value: api.Closer
	instances     sync.Map
	instanceCount atomic.Int64

	// The "host" import module is instantiated once per runtime.
	hostOnce  sync.Once
	hostFuncs *HostFunctionsImpl
	hostErr   error

	config *RuntimeConfig
	logger *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limit per module (in pages, 64KB each)
	// Default: 512 pages = 32MB
	MemoryPages uint32

	// Enable debug logging for Wasm execution
	DebugEnabled bool

	// Compilation cache directory (for persistent caching)
	// If empty, uses in-memory caching only
	CacheDir string

	// Maximum number of concurrent instances; 0 means unlimited
	MaxInstances int

	// Upper bound on a single guest call; 0 means no timeout
	ExecutionTimeout time.Duration
}

// CompiledModule wraps a wazero.CompiledModule with metadata.
type CompiledModule struct {
	// wazero compiled module
	Module wazero.CompiledModule

	// Module metadata
	Name      string
	Source    string // File path or identifier
	SizeBytes int64

	// Compilation timestamp
	CompiledAt int64
}

// Exports returns the definitions of the module's exported functions.
func (c *CompiledModule) Exports() map[string]api.FunctionDefinition {
	if c.Module == nil {
		return nil
	}
	return c.Module.ExportedFunctions()
}

// NewRuntime creates and initializes a new wazero runtime with WASI preview1
// available to guests. This should be called once during application startup.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	rc := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}
	if config.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache %s: %w", config.CacheDir, err)
		}
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	runtime := &Runtime{
		runtime: r,
		config:  config,
		logger:  logger.With(zap.String("component", "wasm-runtime")),
		closed:  make(chan struct{}),
	}

	logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
		zap.Duration("execution_timeout", config.ExecutionTimeout),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:      512, // 32MB
		DebugEnabled:     false,
		CacheDir:         "",
		MaxInstances:     100,
		ExecutionTimeout: 30 * time.Second,
	}
}

// Config returns the runtime configuration.
func (r *Runtime) Config() *RuntimeConfig {
	return r.config
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down Wasm runtime")

		// Close all active instances first
		r.instances.Range(func(key, value any) bool {
			if inst, ok := value.(api.Closer); ok {
				if closeErr := inst.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			r.instances.Delete(key)
			return true
		})
		r.instanceCount.Store(0)

		// Close the runtime (closes compiled modules and the host module)
		err = r.runtime.Close(ctx)

		close(r.closed)
		r.logger.Info("Wasm runtime shutdown complete")
	})

	return err
}

// GetCompiledModule retrieves a compiled module from cache.
func (r *Runtime) GetCompiledModule(name string) (*CompiledModule, bool) {
	if val, ok := r.modules.Load(name); ok {
		if mod, ok := val.(*CompiledModule); ok {
			return mod, true
		}
	}
	return nil, false
}

// StoreCompiledModule stores a compiled module in cache.
func (r *Runtime) StoreCompiledModule(module *CompiledModule) {
	r.modules.Store(module.Name, module)
}

// GetInstance retrieves an active instance.
func (r *Runtime) GetInstance(instanceID string) (api.Closer, bool) {
	v, ok := r.instances.Load(instanceID)
	if !ok {
		return nil, false
	}
	return v.(api.Closer), true
}

// StoreInstance tracks an active instance. It fails once MaxInstances
// instances are being tracked.
func (r *Runtime) StoreInstance(instanceID string, instance api.Closer) error {
	if err := r.reserveInstance(); err != nil {
		return err
	}
	if _, loaded := r.instances.LoadOrStore(instanceID, instance); loaded {
		r.instanceCount.Add(-1)
		return fmt.Errorf("instance %s already tracked", instanceID)
	}
	return nil
}

// DeleteInstance removes an instance from tracking.
func (r *Runtime) DeleteInstance(instanceID string) {
	if _, ok := r.instances.LoadAndDelete(instanceID); ok {
		r.instanceCount.Add(-1)
	}
}

// InstanceCount returns the number of tracked instances.
func (r *Runtime) InstanceCount() int {
	return int(r.instanceCount.Load())
}

func (r *Runtime) reserveInstance() error {
	n := r.instanceCount.Add(1)
	if limit := r.config.MaxInstances; limit > 0 && n > int64(limit) {
		r.instanceCount.Add(-1)
		return &InstanceLimitError{Limit: limit}
	}
	return nil
}

// registerHost instantiates the host import module the first time it is called.
// Later calls reuse it, so the first caller's host functions serve every instance.
func (r *Runtime) registerHost(ctx context.Context, hostFuncs *HostFunctionsImpl) (*HostFunctionsImpl, error) {
	r.hostOnce.Do(func() {
		builder := r.runtime.NewHostModuleBuilder(contract.HostModule)
		hostFuncs.export(builder)
		if _, err := builder.Instantiate(ctx); err != nil {
			r.hostErr = fmt.Errorf("failed to instantiate host module: %w", err)
			return
		}
		r.hostFuncs = hostFuncs
	})
	return r.hostFuncs, r.hostErr
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
