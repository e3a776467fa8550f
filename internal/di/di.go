// Package di implements a minimal dependency injection container used to
// wire business modules together without import cycles between them.
//
// Two registration styles are supported: eager values for process-wide
// singletons built once at startup (config, logger, chain client) via
// Register, and lazy factories for module-owned services that depend on
// other registered services via RegisterToken. A factory runs at most
// once; its result is memoized under its token.
package di

import (
	"fmt"
	"sync"
)

// Container is the write side of the registry, used during module
// registration.
type Container interface {
	// Register binds a value directly under name. Intended for
	// process-wide singletons that have no other dependencies.
	Register(name string, value any)

	// RegisterFactory binds a lazily-resolved, memoized factory under
	// token. Use the generic RegisterToken helper instead of calling
	// this directly.
	RegisterFactory(token string, factory func(ServiceRegistry) any)
}

// ServiceRegistry is the read side of the registry, passed to factories
// and module Startup hooks.
type ServiceRegistry interface {
	// Get resolves name, running and memoizing its factory if needed.
	// Panics if name was never registered - a missing registration is a
	// wiring bug, not a runtime condition to recover from.
	Get(name string) any
}

type registry struct {
	mu        sync.Mutex
	values    map[string]any
	factories map[string]func(ServiceRegistry) any
	resolving map[string]bool
}

// NewContainer creates an empty container.
func NewContainer() *registry {
	return &registry{
		values:    make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
		resolving: make(map[string]bool),
	}
}

func (r *registry) Register(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
}

func (r *registry) RegisterFactory(token string, factory func(ServiceRegistry) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[token] = factory
}

func (r *registry) Get(name string) any {
	r.mu.Lock()
	if v, ok := r.values[name]; ok {
		r.mu.Unlock()
		return v
	}
	factory, ok := r.factories[name]
	if !ok {
		r.mu.Unlock()
		panic(fmt.Sprintf("di: no service registered for %q", name))
	}
	if r.resolving[name] {
		r.mu.Unlock()
		panic(fmt.Sprintf("di: circular dependency resolving %q", name))
	}
	r.resolving[name] = true
	r.mu.Unlock()

	v := factory(r)

	r.mu.Lock()
	r.values[name] = v
	delete(r.factories, name)
	delete(r.resolving, name)
	r.mu.Unlock()

	return v
}

// RegisterToken registers a typed, lazily-resolved factory under token.
// The factory runs once, on first resolution, and its result is reused
// for every subsequent Get.
func RegisterToken[T any](c Container, token string, factory func(sr ServiceRegistry) T) {
	c.RegisterFactory(token, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// Get resolves token and type-asserts it to T. Intended for per-module
// typed getter wrappers (e.g. GetRiskService) built on top of it.
func Get[T any](sr ServiceRegistry, token string) T {
	return sr.Get(token).(T)
}
