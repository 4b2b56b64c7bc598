// Package bus provides the in-process pub/sub event bus connecting all subsystems.
package bus

import (
	"fmt"
	"path"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"
)

// DefaultMaxHistory is the number of emitted events retained for diagnostics.
const DefaultMaxHistory = 200

// Handler receives the payload of an emitted event.
type Handler func(payload map[string]any)

// Record captures one emitted event for the bounded diagnostic history.
type Record struct {
	Event        string
	Payload      map[string]any
	Timestamp    time.Time
	HandlerCount int
	Errors       []string
}

type wildcardSub struct {
	pattern string
	handler Handler
}

// Bus is a synchronous pub/sub event bus with glob pattern support.
//
// Emit runs every matching handler in order on the calling goroutine. A
// handler that panics is isolated: the fault is recorded on the returned
// Record and forwarded to the wired error logger, and the remaining
// handlers still run.
type Bus struct {
	mu         sync.Mutex
	handlers   map[string][]Handler
	wildcards  []wildcardSub
	history    []Record
	maxHistory int

	// errFn forwards handler faults to the central error logger. Set via
	// SetErrorLogger after both bus and logger exist (the logger emits
	// alerts back onto the bus, so neither can depend on the other at
	// construction time).
	errFn func(source string, err error, context map[string]any)
}

// New creates an event bus with the default history capacity.
func New() *Bus {
	return NewWithHistory(DefaultMaxHistory)
}

// NewWithHistory creates an event bus retaining up to maxHistory records.
func NewWithHistory(maxHistory int) *Bus {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &Bus{
		handlers:   make(map[string][]Handler),
		maxHistory: maxHistory,
	}
}

// SetErrorLogger wires handler faults to the central error logger.
func (b *Bus) SetErrorLogger(fn func(source string, err error, context map[string]any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errFn = fn
}

// Subscribe registers handler for events matching pattern. Patterns are
// either exact topic names ("vault.task.new") or globs ("odoo.*",
// "social.**") matched with shell semantics against the full dotted name.
func (b *Bus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if isWildcard(pattern) {
		b.wildcards = append(b.wildcards, wildcardSub{pattern: pattern, handler: handler})
		return
	}
	b.handlers[pattern] = append(b.handlers[pattern], handler)
}

// Unsubscribe removes handler from pattern. Returns true if it was found.
func (b *Bus) Unsubscribe(pattern string, handler Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := handlerID(handler)
	if isWildcard(pattern) {
		for i, w := range b.wildcards {
			if w.pattern == pattern && handlerID(w.handler) == target {
				b.wildcards = append(b.wildcards[:i], b.wildcards[i+1:]...)
				return true
			}
		}
		return false
	}

	subs := b.handlers[pattern]
	for i, h := range subs {
		if handlerID(h) == target {
			b.handlers[pattern] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Emit publishes an event to all matching handlers, exact subscribers
// first, then wildcard subscribers in registration order. It returns the
// history record for the emission.
func (b *Bus) Emit(event string, payload map[string]any) *Record {
	if payload == nil {
		payload = map[string]any{}
	}
	record := &Record{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	targets := make([]Handler, 0, len(b.handlers[event]))
	targets = append(targets, b.handlers[event]...)
	for _, w := range b.wildcards {
		if matched, err := path.Match(w.pattern, event); err == nil && matched {
			targets = append(targets, w.handler)
		}
	}
	errFn := b.errFn
	b.mu.Unlock()

	for _, h := range targets {
		if err := b.invoke(h, payload); err != nil {
			record.Errors = append(record.Errors, err.Error())
			if errFn != nil {
				errFn("event_bus", err, map[string]any{
					"event":   event,
					"handler": handlerName(h),
				})
			}
			continue
		}
		record.HandlerCount++
	}

	b.mu.Lock()
	b.history = append(b.history, *record)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	b.mu.Unlock()

	return record
}

// invoke runs a single handler, converting a panic into an error.
func (b *Bus) invoke(h Handler, payload map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	h(payload)
	return nil
}

// HandlersFor returns every handler that would fire for event.
func (b *Bus) HandlersFor(event string) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := append([]Handler(nil), b.handlers[event]...)
	for _, w := range b.wildcards {
		if matched, err := path.Match(w.pattern, event); err == nil && matched {
			result = append(result, w.handler)
		}
	}
	return result
}

// History returns a copy of the recent event records.
func (b *Bus) History() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Record(nil), b.history...)
}

// Clear removes all handlers and history.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]Handler)
	b.wildcards = nil
	b.history = nil
}

func isWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// handlerID identifies a handler function for Unsubscribe. Two distinct
// closures never share an ID; the same function value always does.
func handlerID(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

func handlerName(h Handler) string {
	if fn := runtime.FuncForPC(handlerID(h)); fn != nil {
		return fn.Name()
	}
	return "unknown"
}
