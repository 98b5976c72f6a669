package wasm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	contract "github.com/questmind/questmind/api/wasm"
	"go.uber.org/zap"
)

// ModuleLoader handles loading and compiling Wasm modules.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// ModuleSource represents a source for Wasm bytecode.
type ModuleSource interface {
	// Bytes returns the Wasm bytecode.
	Bytes() ([]byte, error)

	// Name returns a name/identifier for this module.
	Name() string

	// Size returns the size in bytes.
	Size() int64
}

// FileModuleSource loads Wasm from a file.
type FileModuleSource struct {
	// ModuleName overrides the cache key; the path is used when empty.
	ModuleName string
	Path       string
}

// Bytes reads the Wasm file.
func (f *FileModuleSource) Bytes() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Name returns the module name, defaulting to the file path.
func (f *FileModuleSource) Name() string {
	if f.ModuleName != "" {
		return f.ModuleName
	}
	return f.Path
}

// Size returns the file size.
func (f *FileModuleSource) Size() int64 {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// MemoryModuleSource loads Wasm from memory.
type MemoryModuleSource struct {
	ModuleName string
	Data       []byte
}

// Bytes returns the Wasm bytecode.
func (m *MemoryModuleSource) Bytes() ([]byte, error) {
	return m.Data, nil
}

// Name returns the module name.
func (m *MemoryModuleSource) Name() string {
	return m.ModuleName
}

// Size returns the data size.
func (m *MemoryModuleSource) Size() int64 {
	return int64(len(m.Data))
}

// LoadModule loads a Wasm module from a source.
// Compiles it if not already cached.
func (l *ModuleLoader) LoadModule(ctx context.Context, source ModuleSource) (*CompiledModule, error) {
	if cached, ok := l.runtime.GetCompiledModule(source.Name()); ok {
		l.logger.Debug("Module cache hit",
			zap.String("module", source.Name()),
		)
		return cached, nil
	}

	wasmBytes, err := source.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", source.Name(), err)
	}

	l.logger.Info("Compiling Wasm module",
		zap.String("module", source.Name()),
		zap.Int64("size_bytes", source.Size()),
	)

	startTime := time.Now()

	// Decoding and validation happen here, once per module.
	compiled, err := l.runtime.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, &CompilationError{
			ModuleName: source.Name(),
			Err:        err,
		}
	}

	compiledModule := &CompiledModule{
		Module:     compiled,
		Name:       source.Name(),
		Source:     source.Name(),
		SizeBytes:  source.Size(),
		CompiledAt: time.Now().Unix(),
	}

	l.runtime.StoreCompiledModule(compiledModule)

	l.logger.Info("Module compiled successfully",
		zap.String("module", source.Name()),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("exported_functions", len(compiled.ExportedFunctions())),
	)

	return compiledModule, nil
}

// LoadModuleFromFile is a convenience function for loading from a file path.
func (l *ModuleLoader) LoadModuleFromFile(ctx context.Context, path string) (*CompiledModule, error) {
	return l.LoadModule(ctx, &FileModuleSource{Path: path})
}

// LoadNamedModuleFromFile loads a file but caches it under name.
func (l *ModuleLoader) LoadNamedModuleFromFile(ctx context.Context, name, path string) (*CompiledModule, error) {
	return l.LoadModule(ctx, &FileModuleSource{ModuleName: name, Path: path})
}

// LoadModuleFromMemory loads from a byte slice.
func (l *ModuleLoader) LoadModuleFromMemory(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	return l.LoadModule(ctx, &MemoryModuleSource{ModuleName: name, Data: data})
}

// VerifyExports checks that the module exports each named function with the
// signature the boundary contract gives it. Names unknown to the contract fail.
func VerifyExports(module *CompiledModule, names []string) error {
	exports := module.Exports()
	for _, name := range names {
		want, ok := contract.Lookup(name)
		if !ok {
			return fmt.Errorf("'%s' is not part of the module contract", name)
		}
		def, ok := exports[name]
		if !ok {
			return &FunctionNotFoundError{ModuleName: module.Name, FunctionName: name}
		}
		if !want.Matches(def) {
			got := contract.Signature{Name: name, Params: def.ParamTypes(), Results: def.ResultTypes()}
			return &SignatureMismatchError{
				ModuleName:   module.Name,
				FunctionName: name,
				Want:         want.String(),
				Got:          got.String(),
			}
		}
	}
	return nil
}

// ExportNames returns the module's exported function names, sorted.
func ExportNames(module *CompiledModule) []string {
	exports := module.Exports()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
