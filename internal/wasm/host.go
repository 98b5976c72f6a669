package wasm

import (
	"context"
	"errors"
	"sync"

	contract "github.com/questmind/questmind/api/wasm"
	"github.com/questmind/questmind/pkg/protocol"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// HostFunctionsImpl implements the functions the host exports to guests.
type HostFunctionsImpl struct {
	logger *zap.Logger
	sink   LogSink

	// Per-instance sinks, keyed by instance ID (the guest module name).
	sinks sync.Map // map[string]LogSink
}

// NewHostFunctions creates the host functions. Guest log lines go to sink;
// a nil sink logs them through logger.
func NewHostFunctions(logger *zap.Logger, sink LogSink) *HostFunctionsImpl {
	if sink == nil {
		sink = NewZapSink(logger)
	}
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
		sink:   sink,
	}
}

// logMessage is called by guests to write one line.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	var msg []byte
	ok := false
	if mem := mod.Memory(); mem != nil {
		msg, ok = mem.Read(ptr, length)
	}
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.String("module", mod.Name()),
			zap.Error(&HostFunctionError{
				FunctionName: contract.HostLogMessage,
				Err: &MemoryAccessError{
					Operation: "read",
					Address:   ptr,
					Length:    length,
					Err:       errors.New("out of range"),
				},
			}),
		)
		return
	}

	h.sinkFor(mod.Name()).WriteLine(protocol.LogLevel(level), string(msg))
}

// sinkFor returns the sink bound to an instance, or the default sink.
func (h *HostFunctionsImpl) sinkFor(instanceID string) LogSink {
	if v, ok := h.sinks.Load(instanceID); ok {
		return v.(LogSink)
	}
	return h.sink
}

// bind routes the log lines of one instance to sink.
func (h *HostFunctionsImpl) bind(instanceID string, sink LogSink) {
	if sink != nil {
		h.sinks.Store(instanceID, sink)
	}
}

func (h *HostFunctionsImpl) unbind(instanceID string) {
	h.sinks.Delete(instanceID)
}

// export registers the host functions on builder under contract.HostModule.
func (h *HostFunctionsImpl) export(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(contract.HostLogMessage)
}
