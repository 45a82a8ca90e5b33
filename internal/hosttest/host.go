// Package hosttest is an in-process stand-in for the restricted host runtime:
// a goja VM exposing System.getContext and System.getModule over a registry of
// compiled units, with every getModule call counted per id.
package hosttest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"
)

// ErrNotFunction is returned when a registered unit does not evaluate to a function.
var ErrNotFunction = errors.New("unit does not evaluate to a function")

// ErrUnknownUnit is returned by Run for ids that were never registered.
var ErrUnknownUnit = errors.New("unknown unit")

// Host is a fake host runtime. It is not safe for concurrent use by multiple
// goroutines, except for the lookup counters.
type Host struct {
	vm      *goja.Runtime
	units   map[string]goja.Callable
	context *goja.Object

	mu      sync.Mutex
	lookups map[string]int
	order   []string
}

// New creates a host with an empty registry and a fresh global context.
func New() *Host {
	h := &Host{
		vm:      goja.New(),
		units:   make(map[string]goja.Callable),
		lookups: make(map[string]int),
	}

	h.context = h.vm.NewObject()

	system := h.vm.NewObject()
	must(system.Set("getContext", h.getContext))
	must(system.Set("getModule", h.getModule))
	must(h.vm.Set("System", system))

	return h
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Register compiles source and registers it under id.
func (h *Host) Register(id string, source []byte) error {
	value, err := h.vm.RunScript(id+".js", string(source))
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", id, err)
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFunction)
	}

	h.units[id] = fn

	return nil
}

// Run executes unit id the way the host executes an action: directly, without
// a getModule lookup. It returns the unit's export table.
func (h *Host) Run(id string) (*goja.Object, error) {
	fn, ok := h.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}

	value, err := fn(goja.Undefined())
	if err != nil {
		return nil, err
	}

	return value.ToObject(h.vm), nil
}

// Eval runs a script in the host VM.
func (h *Host) Eval(script string) (goja.Value, error) {
	return h.vm.RunString(script)
}

// VM returns the underlying runtime.
func (h *Host) VM() *goja.Runtime {
	return h.vm
}

// NewContext replaces the global context object, dropping the shared runtime
// state stored on it.
func (h *Host) NewContext() {
	h.context = h.vm.NewObject()
}

// Lookups returns how many times getModule was called for id.
func (h *Host) Lookups(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.lookups[id]
}

// LookupLog returns every getModule id in call order.
func (h *Host) LookupLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.order...)
}

// Looked returns the sorted set of ids getModule was called with.
func (h *Host) Looked() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.lookups))
	for id := range h.lookups {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

// ResetLookups clears the lookup counters.
func (h *Host) ResetLookups() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lookups = make(map[string]int)
	h.order = nil
}

func (h *Host) getContext(goja.FunctionCall) goja.Value {
	return h.context
}

func (h *Host) getModule(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).String()

	h.mu.Lock()
	h.lookups[id]++
	h.order = append(h.order, id)
	h.mu.Unlock()

	fn, ok := h.units[id]
	if !ok {
		return goja.Null()
	}

	value, err := fn(goja.Undefined())
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			panic(ex)
		}

		panic(h.vm.NewGoError(err))
	}

	return value
}

// ErrorName returns the name property of a JavaScript error raised by the VM,
// or "" when err is not a JavaScript exception.
func ErrorName(err error) string {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return ""
	}

	obj, ok := ex.Value().(*goja.Object)
	if !ok {
		return ""
	}

	name := obj.Get("name")
	if name == nil {
		return ""
	}

	return name.String()
}
