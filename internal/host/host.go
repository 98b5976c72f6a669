//go:generate env GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o ../../testdata/questmind.wasm ../../cmd/questmind-wasm

// Package host embeds QuestMind bundles: it builds the Wasm runtime and
// bundle manager from configuration and calls the binding surface of the
// configured bundle.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/questmind/questmind/internal/bundle"
	"github.com/questmind/questmind/internal/config"
	"github.com/questmind/questmind/internal/wasm"
	"go.uber.org/zap"
)

// Host owns one runtime and calls into a single bundle instance.
type Host struct {
	cfg     *config.Config
	logger  *zap.Logger
	runtime *wasm.Runtime
	manager *bundle.Manager

	mu       sync.Mutex
	instance *wasm.Instance
	closed   bool
}

// BundleInfo describes a loaded bundle.
type BundleInfo struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Target   string   `json:"target"`
	Runnable bool     `json:"runnable"`
	Exports  []string `json:"exports"`
	Wasm     string   `json:"wasm"`
}

// NewHost creates the runtime and loads every bundle on cfg.BundlePaths.
// Guest log lines go to sink; a nil sink logs them through logger.
func NewHost(ctx context.Context, cfg *config.Config, logger *zap.Logger, sink wasm.LogSink) (*Host, error) {
	wasmConfig := &wasm.RuntimeConfig{
		MemoryPages:      cfg.Wasm.MemoryPages,
		DebugEnabled:     cfg.Wasm.Debug,
		CacheDir:         cfg.Wasm.CacheDir,
		MaxInstances:     cfg.Wasm.MaxInstances,
		ExecutionTimeout: cfg.Wasm.Timeout(),
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	manager := bundle.NewManager(cfg, wasmRuntime, wasm.NewHostFunctions(logger, sink), logger)
	if err := manager.LoadAll(ctx); err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, fmt.Errorf("failed to load bundles: %w", err)
	}

	logger.Info("Host initialized",
		zap.String("bundle", cfg.Bundle),
		zap.Int("bundles_loaded", manager.Registry().Count()),
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
	)

	return &Host{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "host")),
		runtime: wasmRuntime,
		manager: manager,
	}, nil
}

// Instance returns the instance of the configured bundle, creating and
// initializing it on first use.
func (h *Host) Instance(ctx context.Context) (*wasm.Instance, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("host is closed")
	}
	if h.instance != nil && !h.instance.Closed() {
		return h.instance, nil
	}

	inst, err := h.manager.Instantiate(ctx, h.cfg.Bundle, nil)
	if err != nil {
		return nil, err
	}
	h.instance = inst

	h.logger.Debug("Bundle instance ready",
		zap.String("bundle", h.cfg.Bundle),
		zap.String("instance_id", inst.ID),
	)
	return inst, nil
}

// Greet asks the bundle to log a greeting for name.
func (h *Host) Greet(ctx context.Context, name string) error {
	inst, err := h.Instance(ctx)
	if err != nil {
		return err
	}
	return h.release(inst, inst.Greet(ctx, name))
}

// Add returns a + b computed by the bundle.
func (h *Host) Add(ctx context.Context, a, b int32) (int32, error) {
	inst, err := h.Instance(ctx)
	if err != nil {
		return 0, err
	}
	sum, err := inst.Add(ctx, a, b)
	return sum, h.release(inst, err)
}

// ProcessText returns the bundle's processed form of text.
func (h *Host) ProcessText(ctx context.Context, text string) (string, error) {
	inst, err := h.Instance(ctx)
	if err != nil {
		return "", err
	}
	out, err := inst.ProcessText(ctx, text)
	return out, h.release(inst, err)
}

// release forgets inst after a call that timed out or otherwise closed it,
// so the next call starts a fresh, initialized instance. It returns err.
func (h *Host) release(inst *wasm.Instance, err error) error {
	var timeout *wasm.TimeoutError
	if err == nil || (!errors.As(err, &timeout) && !inst.Closed()) {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instance == inst {
		h.instance = nil
		h.logger.Warn("Dropped bundle instance after failed call",
			zap.String("instance_id", inst.ID),
			zap.Error(err),
		)
	}
	return err
}

// Inspect lists the loaded bundles.
func (h *Host) Inspect() []BundleInfo {
	bundles := h.manager.Registry().List()
	infos := make([]BundleInfo, 0, len(bundles))
	for _, b := range bundles {
		infos = append(infos, BundleInfo{
			Name:     b.Name(),
			Version:  b.Version(),
			Target:   b.Target(),
			Runnable: b.Runnable(),
			Exports:  b.Exports(),
			Wasm:     b.Manifest.WasmPath(),
		})
	}
	return infos
}

// Close shuts down the bundle manager and runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	inst := h.instance
	h.instance = nil
	h.mu.Unlock()

	h.logger.Info("Shutting down host")

	if inst != nil {
		if err := inst.Close(ctx); err != nil {
			h.logger.Warn("Failed to close bundle instance", zap.Error(err))
		}
	}

	if err := h.manager.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown bundle manager", zap.Error(err))
		return err
	}

	h.logger.Info("Host shutdown complete")
	return nil
}
