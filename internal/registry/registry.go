// Package registry implements the plugin registry (kind, name) -> (schema,
// factory), the process-wide structure C2 consults while validating
// configuration and C6 consults while instantiating drivers. Registration
// happens once at process start; every subsequent access is concurrent
// read, mirroring the teacher's tracer.Config Type/Plugin pattern extended
// across every stage kind this kernel supports.
package registry

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rc1405/fiddler-sub000"
)

// Kind identifies which stage slot a plugin can fill.
type Kind string

const (
	KindInput       Kind = "input"
	KindInputBatch  Kind = "input_batch"
	KindOutput      Kind = "output"
	KindOutputBatch Kind = "output_batch"
	KindProcessor   Kind = "processor"
	KindMetrics     Kind = "metrics"
)

// Factory builds a concrete driver instance from the plugin's
// already-validated configuration subtree, serialized as JSON.
type Factory func(ctx context.Context, config []byte) (any, error)

type entry struct {
	rawSchema string
	schema    *jsonschema.Schema
	factory   Factory
}

// Registry is the process-wide plugin table. The zero value is not usable;
// construct with New.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[Kind]map[string]entry),
	}
}

// Register compiles schemaJSON as a Draft-7 JSON Schema and adds the
// (kind, name) entry. Re-registering the same key fails with
// ErrDuplicateRegisteredName.
func (r *Registry) Register(kind Kind, name string, schemaJSON string, factory Factory) error {
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	res, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schemaJSON)))
	if err != nil {
		return errors.Wrapf(fiddler.ErrInvalidValidationSchema, "plugin %s/%s: %v", kind, name, err)
	}
	resourceName := string(kind) + "/" + name + ".json"
	if err := compiler.AddResource(resourceName, res); err != nil {
		return errors.Wrapf(fiddler.ErrInvalidValidationSchema, "plugin %s/%s: %v", kind, name, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return errors.Wrapf(fiddler.ErrInvalidValidationSchema, "plugin %s/%s: %v", kind, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[kind]; !ok {
		r.entries[kind] = make(map[string]entry)
	}
	if _, exists := r.entries[kind][name]; exists {
		return errors.Wrapf(fiddler.ErrDuplicateRegisteredName, "%s/%s", kind, name)
	}
	r.entries[kind][name] = entry{rawSchema: schemaJSON, schema: schema, factory: factory}
	return nil
}

// Has reports whether (kind, name) is registered.
func (r *Registry) Has(kind Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[kind][name]
	return ok
}

// Validate checks configJSON (a plugin's config subtree, serialized as
// JSON) against the compiled schema for (kind, name).
func (r *Registry) Validate(kind Kind, name string, configJSON []byte) error {
	r.mu.RLock()
	e, ok := r.entries[kind][name]
	r.mu.RUnlock()
	if !ok {
		return errors.Wrapf(fiddler.ErrConfigurationNotFound, "%s/%s", kind, name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(configJSON))
	if err != nil {
		return errors.Wrapf(fiddler.ErrConfigFailedValidation, "%s/%s: %v", kind, name, err)
	}
	if err := e.schema.Validate(inst); err != nil {
		return errors.Wrapf(fiddler.ErrConfigFailedValidation, "%s/%s: %v", kind, name, err)
	}
	return nil
}

// Build invokes the registered factory for (kind, name) with a
// JSON-serialized, already-validated config subtree.
func (r *Registry) Build(ctx context.Context, kind Kind, name string, configJSON []byte) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[kind][name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(fiddler.ErrConfigurationNotFound, "%s/%s", kind, name)
	}
	return e.factory(ctx, configJSON)
}

// ExportSchemas returns a snapshot of every registered plugin's raw JSON
// Schema text, organized by kind, for tooling and documentation
// generation.
func (r *Registry) ExportSchemas() map[string]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]string, len(r.entries))
	for kind, byName := range r.entries {
		m := make(map[string]string, len(byName))
		for name, e := range byName {
			m[name] = e.rawSchema
		}
		out[string(kind)] = m
	}
	return out
}
