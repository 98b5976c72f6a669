package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	contract "github.com/questmind/questmind/api/wasm"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, a UUID is generated).
	InstanceID string

	// Sink receives this instance's log lines. The host functions'
	// default sink is used when nil.
	Sink LogSink

	// Stdout and Stderr of the guest. Stderr defaults to the logger.
	Stdout io.Writer
	Stderr io.Writer

	// SkipInitialize leaves the instance uninitialized so the caller can
	// call Initialize itself. The default initializes before returning.
	SkipInitialize bool
}

// Instance represents an instantiated Wasm module.
// Calls are serialized: a guest module is single-threaded.
type Instance struct {
	module  api.Module
	memory  *Memory
	runtime *Runtime
	host    *HostFunctionsImpl
	logger  *zap.Logger
	timeout time.Duration

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	mu          sync.Mutex
	initialized bool
	closed      bool
}

// Instantiate creates a new instance from a compiled module and, unless
// config.SkipInitialize is set, runs its initialize export exactly once
// before returning. Any log line that produces is written before the
// caller can invoke another export.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateUUID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	host, err := m.runtime.registerHost(ctx, m.hostFuncs)
	if err != nil {
		return nil, err
	}
	// Lines are routed per instance, so each manager keeps its own default sink
	// even though the host module is shared by the runtime.
	sink := config.Sink
	if sink == nil {
		sink = m.hostFuncs.sink
	}
	host.bind(instanceID, sink)

	stderr := config.Stderr
	if stderr == nil {
		stderr = zap.NewStdLog(m.logger.With(zap.String("instance_id", instanceID))).Writer()
	}
	stdout := config.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	// Start functions are not run implicitly: a reactor's _initialize and
	// the module's own initialize are called explicitly below.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions().
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		host.unbind(instanceID)
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	if err := m.runtime.StoreInstance(instanceID, module); err != nil {
		host.unbind(instanceID)
		_ = module.Close(ctx)
		return nil, err
	}

	instance := &Instance{
		module:    module,
		memory:    NewMemory(module),
		runtime:   m.runtime,
		host:      host,
		logger:    m.logger.With(zap.String("instance_id", instanceID)),
		timeout:   m.runtime.config.ExecutionTimeout,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   m.cacheExportedFunctions(module),
	}

	// wasip1 reactors must run their runtime initializer before any other export.
	if _, ok := instance.exports[contract.ExportReactorInit]; ok {
		if _, err := instance.call(ctx, contract.ExportReactorInit); err != nil {
			_ = instance.Close(ctx)
			return nil, &InstantiationError{ModuleName: config.ModuleName, InstanceID: instanceID, Err: err}
		}
	}

	if !config.SkipInitialize {
		if _, err := instance.Initialize(ctx); err != nil {
			_ = instance.Close(ctx)
			return nil, err
		}
	}

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// cacheExportedFunctions caches references to the functions of the module contract.
func (m *InstanceManager) cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	names := []string{contract.ExportReactorInit}
	for _, sig := range contract.Exports {
		names = append(names, sig.Name)
	}
	for _, name := range names {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// Initialize calls the module's initialize export the first time it is
// called on this instance and reports whether it did. Later calls do nothing.
// A module without an initialize export fails with FunctionNotFoundError; a
// failed call leaves the instance uninitialized.
func (i *Instance) Initialize(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.initialized {
		return false, nil
	}
	if _, err := i.callLocked(ctx, contract.ExportInitialize); err != nil {
		return false, err
	}
	i.initialized = true
	return true, nil
}

// Initialized reports whether Initialize has run.
func (i *Instance) Initialized() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.initialized
}

// Greet asks the module to write a greeting for name to its log sink.
func (i *Instance) Greet(ctx context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ptr, length, err := i.memory.WriteString(ctx, name)
	if err != nil {
		return err
	}
	defer i.free(ctx, ptr, length)

	_, err = i.callLocked(ctx, contract.ExportGreet, uint64(ptr), uint64(length))
	return err
}

// Add returns a + b as computed by the module. Overflow wraps.
func (i *Instance) Add(ctx context.Context, a, b int32) (int32, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	results, err := i.callLocked(ctx, contract.ExportAdd, api.EncodeI32(a), api.EncodeI32(b))
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(results[0]), nil
}

// ProcessText returns the module's processed form of text.
func (i *Instance) ProcessText(ctx context.Context, text string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ptr, length, err := i.memory.WriteString(ctx, text)
	if err != nil {
		return "", err
	}
	defer i.free(ctx, ptr, length)

	results, err := i.callLocked(ctx, contract.ExportProcessText, uint64(ptr), uint64(length))
	if err != nil {
		return "", err
	}

	out, outPtr, outLen, err := i.memory.ReadPacked(results[0])
	i.free(ctx, outPtr, outLen)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Exports returns the names of the cached contract functions.
func (i *Instance) Exports() []string {
	names := make([]string, 0, len(i.exports))
	for _, sig := range contract.Exports {
		if _, ok := i.exports[sig.Name]; ok {
			names = append(names, sig.Name)
		}
	}
	return names
}

// Closed reports whether the instance was closed, either by Close or because
// a call ran past its context.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// Close closes the instance and releases resources. Safe to call twice.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.retireLocked()
	return i.module.Close(ctx)
}

// retireLocked stops tracking the instance. i.mu must be held.
func (i *Instance) retireLocked() {
	i.closed = true
	i.runtime.DeleteInstance(i.ID)
	i.host.unbind(i.ID)
}

func (i *Instance) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.callLocked(ctx, name, params...)
}

// callLocked invokes an export under the execution timeout. i.mu must be held.
func (i *Instance) callLocked(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, &CallError{InstanceID: i.ID, FunctionName: name, Err: errors.New("instance is closed")}
	}

	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		// The runtime closes a module whose context ends mid-call.
		if ctxErr := ctx.Err(); ctxErr != nil {
			i.retireLocked()
			i.logger.Warn("Instance closed after interrupted call",
				zap.String("function", name),
				zap.Error(ctxErr),
			)
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, &TimeoutError{FunctionName: name, Duration: i.timeout}
			}
		}
		return nil, &CallError{InstanceID: i.ID, FunctionName: name, Err: err}
	}
	return results, nil
}

// free releases guest memory, logging rather than returning failures.
func (i *Instance) free(ctx context.Context, ptr, length uint32) {
	if err := i.memory.Free(ctx, ptr, length); err != nil {
		i.logger.Warn("Failed to free guest memory", zap.Error(err))
	}
}

// generateUUID generates a unique instance ID.
func generateUUID() string {
	return fmt.Sprintf("inst-%s", uuid.NewString())
}
