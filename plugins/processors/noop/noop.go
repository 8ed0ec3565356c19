// Package noop implements a trivial pass-through processor, useful in
// tests and as a pipeline placeholder. No teacher or pack grounding is
// needed for a driver this small; its shape mirrors the sibling
// processor plugins' Register convention.
package noop

import (
	"context"
	"encoding/json"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{"type":"object","additionalProperties":false}`

// Config is presently empty.
type Config struct{}

// Driver returns every message unchanged.
type Driver struct{}

// New returns a Driver.
func New() *Driver { return &Driver{} }

// Process implements fiddler.Processor.
func (Driver) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	return []*fiddler.Message{msg}, nil
}

// Close implements fiddler.Closer.
func (Driver) Close(ctx context.Context) error { return nil }

// Register adds this driver under the name "noop" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindProcessor, "noop", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, err
			}
			return New(), nil
		})
}
