// Package output renders a disk and build-cache usage snapshot in various
// formats (pretty, plain, json, yaml, template).
//
// The package uses a registry pattern so formatters can be selected at
// runtime by name.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// Result is one usage snapshot ready for formatting.
type Result struct {
	// Disk is the measured filesystem.
	Disk usage.DiskReport

	// Cache is the docker disk usage. Nil when it could not be collected.
	Cache *usage.CacheReport

	// Thresholds are the fractions Level was evaluated against.
	Thresholds cleaner.Thresholds

	// Level is the evaluation outcome.
	Level cleaner.Level

	// CheckedAt is when the snapshot was taken.
	CheckedAt time.Time

	// Warnings contains collection problems that did not prevent output.
	Warnings []string
}

// NewResult evaluates disk against thresholds and returns the snapshot.
func NewResult(disk usage.DiskReport, cache *usage.CacheReport, thresholds cleaner.Thresholds, checkedAt time.Time) *Result {
	return &Result{
		Disk:       disk,
		Cache:      cache,
		Thresholds: thresholds,
		Level:      cleaner.Evaluate(disk, thresholds),
		CheckedAt:  checkedAt,
	}
}

// UsedPercent returns the used share of the disk in percent.
func (r *Result) UsedPercent() float64 {
	return r.Disk.UsedFraction() * 100
}

// Formatter renders a Result.
type Formatter interface {
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a fresh Formatter, so per-call state such as a
// custom template never leaks between callers.
type FormatterFactory func() Formatter

// ErrUnknownFormat is returned by Get for a name nothing registered.
var ErrUnknownFormat = errors.New("unknown formatter")

// Registry maps format names to formatter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// Get returns a new formatter for name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return factory(), nil
}

// Available returns the registered names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// DefaultRegistry holds the built-in formatters; each registers itself in init.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the default registry's formats.
func Available() []string {
	return DefaultRegistry.Available()
}
