package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/git6keen/Levelset-sub001/internal/store"
)

// Recorder receives one entry per invocation.
type Recorder interface {
	Record(action string, inputs any, outcome, code string)
}

// Observer receives invocation timings.
type Observer interface {
	ObserveTool(name, status string, elapsed time.Duration)
}

// Executor validates tool calls against the registry and dispatches them to
// their handlers. It is safe for concurrent use.
type Executor struct {
	registry *Registry
	handlers map[string]Handler
	recorder Recorder
	observer Observer
	logger   *slog.Logger
}

// NewExecutor creates an executor. Every registry entry must have exactly one
// handler and every handler must name a registry entry.
func NewExecutor(registry *Registry, handlers map[string]Handler, logger *slog.Logger) (*Executor, error) {
	for _, name := range registry.Names() {
		if handlers[name] == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
	}
	for name := range handlers {
		if _, ok := registry.Lookup(name); !ok {
			return nil, fmt.Errorf("handler %q has no definition", name)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	copied := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		copied[name] = h
	}
	return &Executor{registry: registry, handlers: copied, logger: logger}, nil
}

// SetRecorder sets the audit recorder.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// SetObserver sets the metrics observer.
func (e *Executor) SetObserver(o Observer) {
	e.observer = o
}

// Registry returns the catalog the executor validates against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the named tool. Failures are reported in the result, never
// as a Go error or a panic.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) Result {
	start := time.Now()
	if args == nil {
		args = map[string]any{}
	}

	res := e.execute(ctx, name, args)

	status := "ok"
	code := ""
	if !res.OK {
		status = "error"
		code = res.Error.Code
	}
	if e.observer != nil {
		e.observer.ObserveTool(name, status, time.Since(start))
	}
	if e.recorder != nil {
		e.recorder.Record(name, args, status, code)
	}
	if res.OK {
		e.logger.Debug("tool executed", "tool", name, "duration", time.Since(start))
	} else {
		e.logger.Info("tool failed", "tool", name, "code", code, "detail", res.Error.Detail)
	}
	return res
}

func (e *Executor) execute(ctx context.Context, name string, args map[string]any) Result {
	def, ok := e.registry.Lookup(name)
	if !ok {
		return Failure(CodeUnknownTool, fmt.Sprintf("unknown tool %q", name), "")
	}

	var missing []string
	for _, a := range def.Args {
		if !a.Required {
			continue
		}
		v, present := args[a.Name]
		if isMissing(v, present) {
			missing = append(missing, a.Name)
		}
	}
	if len(missing) > 0 {
		return missingFailure(missing)
	}

	payload, err := e.invoke(ctx, e.handlers[name], args)
	if err != nil {
		return classify(err)
	}
	return Success(payload)
}

// invoke runs a handler, converting a panic into an error.
func (e *Executor) invoke(ctx context.Context, h Handler, args map[string]any) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = &panicError{value: r}
		}
	}()
	return h(ctx, args)
}

func missingFailure(names []string) Result {
	res := Failure(CodeMissingArgument,
		fmt.Sprintf("missing required argument(s): %s", strings.Join(names, ", ")), "")
	res.Error.Missing = names
	return res
}

// missingArgError is returned by a handler when a required argument is
// present but normalizes to nothing usable.
type missingArgError struct {
	names []string
}

func (m *missingArgError) Error() string {
	return "missing required argument(s): " + strings.Join(m.names, ", ")
}

// printerError wraps a failed or unconfigured printer delivery.
type printerError struct {
	err error
}

func (p *printerError) Error() string { return p.err.Error() }

func (p *printerError) Unwrap() error { return p.err }

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// classify maps handler errors to result codes.
func classify(err error) Result {
	var pe *panicError
	var me *missingArgError
	var pr *printerError
	switch {
	case errors.As(err, &pr):
		return Failure(CodePrinterUnavailable, "the printer could not take the job", err.Error())
	case errors.As(err, &me):
		return missingFailure(me.names)
	case errors.As(err, &pe):
		return Failure(CodeInternalError, "tool handler failed unexpectedly", err.Error())
	case errors.Is(err, store.ErrTaskNotFound):
		return Failure(CodeTaskNotFound, "task not found or no longer active", err.Error())
	case errors.Is(err, store.ErrNotFound):
		return Failure(CodeNotFound, "record not found", err.Error())
	default:
		return Failure(CodeTransactionFailure, "the change could not be saved", err.Error())
	}
}
