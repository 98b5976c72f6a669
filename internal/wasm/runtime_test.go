package wasm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	// Cleanup
	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not error.
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 512 {
		t.Errorf("Default memory pages = %d, want 512", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.MaxInstances != 100 {
		t.Errorf("Default max instances = %d, want 100", config.MaxInstances)
	}

	if config.ExecutionTimeout != 30*time.Second {
		t.Errorf("Default execution timeout = %v, want 30s", config.ExecutionTimeout)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
		MaxInstances: 50,
		CacheDir:     t.TempDir(),
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime.Config().MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}

	runtime.Close(ctx)
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel context.
	cancel()

	// Close with cancelled context.
	err = runtime.Close(ctx)
	// wazero should handle cancelled context gracefully
	if err != nil && err != context.Canceled {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeModuleCache(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	// Test storing and retrieving compiled modules.
	module := &CompiledModule{
		Name:       "test-module",
		Source:     "test",
		SizeBytes:  1024,
		CompiledAt: time.Now().Unix(),
	}

	runtime.StoreCompiledModule(module)

	retrieved, ok := runtime.GetCompiledModule("test-module")
	if !ok {
		t.Fatal("Failed to retrieve module from cache")
	}

	if retrieved.Name != "test-module" {
		t.Errorf("Retrieved wrong module: %s", retrieved.Name)
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	instanceID := "test-instance"
	instance := &fakeCloser{}

	if err := runtime.StoreInstance(instanceID, instance); err != nil {
		t.Fatalf("StoreInstance failed: %v", err)
	}

	retrieved, ok := runtime.GetInstance(instanceID)
	if !ok {
		t.Fatal("Failed to retrieve instance from tracking")
	}

	if retrieved != instance {
		t.Errorf("Retrieved wrong instance")
	}

	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount = %d, want 1", runtime.InstanceCount())
	}

	if err := runtime.StoreInstance(instanceID, instance); err == nil {
		t.Error("Storing a duplicate instance ID should fail")
	}

	runtime.DeleteInstance(instanceID)

	_, ok = runtime.GetInstance(instanceID)
	if ok {
		t.Error("Instance should have been deleted")
	}

	if runtime.InstanceCount() != 0 {
		t.Errorf("InstanceCount = %d, want 0", runtime.InstanceCount())
	}
}

func TestRuntimeInstanceLimit(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, &RuntimeConfig{MaxInstances: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	for _, id := range []string{"a", "b"} {
		if err := runtime.StoreInstance(id, &fakeCloser{}); err != nil {
			t.Fatalf("StoreInstance(%s) failed: %v", id, err)
		}
	}

	err = runtime.StoreInstance("c", &fakeCloser{})
	var limitErr *InstanceLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected InstanceLimitError, got %v", err)
	}
	if limitErr.Limit != 2 {
		t.Errorf("Limit = %d, want 2", limitErr.Limit)
	}

	runtime.DeleteInstance("a")
	if err := runtime.StoreInstance("c", &fakeCloser{}); err != nil {
		t.Errorf("StoreInstance after delete failed: %v", err)
	}
}

func TestRuntimeCloseClosesInstances(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	instance := &fakeCloser{}
	if err := runtime.StoreInstance("x", instance); err != nil {
		t.Fatal(err)
	}

	if err := runtime.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if !instance.closed {
		t.Error("Instance should be closed with the runtime")
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}

func TestCompilationError(t *testing.T) {
	err := &CompilationError{
		ModuleName: "test",
		Err:        &testError{},
	}

	expected := "failed to compile Wasm module 'test': test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestInstantiationError(t *testing.T) {
	err := &InstantiationError{
		ModuleName: "test",
		InstanceID: "inst-1",
		Err:        &testError{},
	}

	expected := "failed to instantiate module 'test' (instance: inst-1): test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestModuleNotFoundError(t *testing.T) {
	err := &ModuleNotFoundError{ModuleName: "test"}

	expected := "module 'test' not found in cache"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestFunctionNotFoundError(t *testing.T) {
	err := &FunctionNotFoundError{
		ModuleName:   "test",
		FunctionName: "greet",
	}

	expected := "function 'greet' not found in module 'test'"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestSignatureMismatchError(t *testing.T) {
	err := &SignatureMismatchError{
		ModuleName:   "test",
		FunctionName: "add",
		Want:         "add(i32, i32) -> (i32)",
		Got:          "add(i32) -> (i32)",
	}

	expected := "function 'add' in module 'test' has signature add(i32) -> (i32), want add(i32, i32) -> (i32)"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{FunctionName: "add", Duration: 2 * time.Second}

	expected := "Wasm call 'add' timed out after 2s"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestCallErrorUnwrap(t *testing.T) {
	inner := &testError{}
	err := &CallError{InstanceID: "inst-1", FunctionName: "greet", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("CallError should unwrap to its cause")
	}
}

// fakeCloser records whether Close was called.
type fakeCloser struct {
	closed bool
}

func (f *fakeCloser) Close(context.Context) error {
	f.closed = true
	return nil
}

// testError is a simple error for testing.
type testError struct{}

func (e *testError) Error() string {
	return "test error"
}
