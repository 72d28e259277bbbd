// Package registry maps method names to the functions that serve them.
//
// A Registry is filled before the server starts and frozen when serving
// begins, so dispatch only ever reads it.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrRegistryFrozen is returned by Register once serving has begun.
var ErrRegistryFrozen = errors.New("rpc: registry is frozen")

// UnknownMethodError reports a request for a name nothing is registered under.
type UnknownMethodError struct {
	Name string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Unknown method '%s'", e.Name)
}

// InvocationError wraps any failure while calling a registered function:
// wrong param count, undecodable params, an error result or a panic.
// Its message is the underlying message, unchanged.
type InvocationError struct {
	Method string
	Err    error
}

func (e *InvocationError) Error() string { return e.Err.Error() }

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Cause() error { return e.Err }

type Registry struct {
	methods map[string]*Method
	frozen  atomic.Bool
}

func New() *Registry {
	return &Registry{methods: make(map[string]*Method)}
}

// Register binds name to fn, replacing any earlier binding.
func (r *Registry) Register(name string, fn any) error {
	if r.frozen.Load() {
		return errors.Wrapf(ErrRegistryFrozen, "registering %s", name)
	}
	if name == "" {
		return errors.New("rpc: method name is empty")
	}
	m, err := newMethod(name, fn)
	if err != nil {
		return err
	}
	r.methods[name] = m
	return nil
}

// Freeze stops further registration. It is idempotent.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Resolve returns the method bound to name or an *UnknownMethodError.
func (r *Registry) Resolve(name string) (*Method, error) {
	m, ok := r.methods[name]
	if !ok {
		return nil, &UnknownMethodError{Name: name}
	}
	return m, nil
}

// Invoke resolves name and calls it with params. Failures of the call itself
// come back as *InvocationError.
func (r *Registry) Invoke(ctx context.Context, name string, params []json.RawMessage) (json.RawMessage, error) {
	m, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	result, err := m.Call(ctx, params)
	if err != nil {
		return nil, &InvocationError{Method: name, Err: err}
	}
	return result, nil
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
