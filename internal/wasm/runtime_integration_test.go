package wasm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/questmind/questmind/internal/wasm/wasmtest"
	"github.com/questmind/questmind/pkg/protocol"
)

// TestLoadModuleFromMemory tests loading a simple Wasm module from memory.
func TestLoadModuleFromMemory(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	module, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	if err != nil {
		t.Fatalf("Failed to load module: %v", err)
	}

	if module == nil {
		t.Fatal("Module is nil")
	}

	if module.Name != "test-module" {
		t.Errorf("Module name = %s, want 'test-module'", module.Name)
	}

	// Test caching - load again should hit cache.
	module2, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	if err != nil {
		t.Fatalf("Failed to load module from cache: %v", err)
	}

	if module2 != module {
		t.Error("Cache should return the same module instance")
	}
}

// TestModuleLoaderFileSource tests the FileModuleSource.
func TestModuleLoaderFileSource(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	wasmFile := filepath.Join(t.TempDir(), "add.wasm")
	if err := os.WriteFile(wasmFile, wasmtest.AddOnly, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	module, err := loader.LoadModuleFromFile(ctx, wasmFile)
	if err != nil {
		t.Fatalf("Failed to load module from file: %v", err)
	}
	if module.SizeBytes != int64(len(wasmtest.AddOnly)) {
		t.Errorf("SizeBytes = %d, want %d", module.SizeBytes, len(wasmtest.AddOnly))
	}

	named, err := loader.LoadNamedModuleFromFile(ctx, "adder", wasmFile)
	if err != nil {
		t.Fatalf("Failed to load named module: %v", err)
	}
	if _, ok := runtime.GetCompiledModule("adder"); !ok || named.Name != "adder" {
		t.Error("Named module should be cached under its name")
	}
}

func TestLoadModuleInvalidBytes(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	_, err = loader.LoadModuleFromMemory(ctx, "garbage", []byte("not wasm"))
	var compErr *CompilationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if compErr.ModuleName != "garbage" {
		t.Errorf("ModuleName = %s, want garbage", compErr.ModuleName)
	}
}

func TestVerifyExports(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)

	guest, err := loader.LoadModuleFromMemory(ctx, "guest", wasmtest.FakeGuest)
	if err != nil {
		t.Fatal(err)
	}
	all := []string{"initialize", "greet", "add", "process_text", "allocate", "deallocate"}
	if err := VerifyExports(guest, all); err != nil {
		t.Errorf("VerifyExports(guest) = %v, want nil", err)
	}

	adder, err := loader.LoadModuleFromMemory(ctx, "adder", wasmtest.AddOnly)
	if err != nil {
		t.Fatal(err)
	}
	var notFound *FunctionNotFoundError
	if err := VerifyExports(adder, []string{"add", "greet"}); !errors.As(err, &notFound) {
		t.Errorf("expected FunctionNotFoundError, got %v", err)
	}

	bad, err := loader.LoadModuleFromMemory(ctx, "bad", wasmtest.BadAdd)
	if err != nil {
		t.Fatal(err)
	}
	var mismatch *SignatureMismatchError
	if err := VerifyExports(bad, []string{"add"}); !errors.As(err, &mismatch) {
		t.Fatalf("expected SignatureMismatchError, got %v", err)
	}
	if mismatch.Got != "add(i32) -> (i32)" {
		t.Errorf("Got = %s", mismatch.Got)
	}

	if err := VerifyExports(guest, []string{"parse"}); err == nil {
		t.Error("Unknown export names should be rejected")
	}

	names := ExportNames(guest)
	if len(names) != 6 || names[0] != "add" {
		t.Errorf("ExportNames = %v", names)
	}
}

// TestHostFunctions tests host function creation.
func TestHostFunctions(t *testing.T) {
	logger := zaptest.NewLogger(t)

	hostFuncs := NewHostFunctions(logger, nil)
	if hostFuncs == nil {
		t.Fatal("HostFunctionsImpl is nil")
	}

	if hostFuncs.logger == nil {
		t.Error("Logger not initialized")
	}

	if _, ok := hostFuncs.sink.(*ZapSink); !ok {
		t.Errorf("Default sink = %T, want *ZapSink", hostFuncs.sink)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := NewZapSink(zap.New(core))

	sink.WriteLine(protocol.LogLevelDebug, "d")
	sink.WriteLine(protocol.LogLevelInfo, "i")
	sink.WriteLine(protocol.LogLevelWarn, "w")
	sink.WriteLine(protocol.LogLevelError, "e")
	sink.WriteLine(protocol.LogLevel(7), "x")

	entries := logs.AllUntimed()
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}

	want := []zap.AtomicLevel{
		zap.NewAtomicLevelAt(zap.DebugLevel),
		zap.NewAtomicLevelAt(zap.InfoLevel),
		zap.NewAtomicLevelAt(zap.WarnLevel),
		zap.NewAtomicLevelAt(zap.ErrorLevel),
		zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for i, e := range entries {
		if e.Level != want[i].Level() {
			t.Errorf("entry %d level = %s, want %s", i, e.Level, want[i].Level())
		}
		if e.ContextMap()["component"] != "wasm-guest" {
			t.Errorf("entry %d missing component field", i)
		}
	}
}
