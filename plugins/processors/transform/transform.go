// Package transform implements a JMESPath field-remapping processor: each
// configured mapping extracts one source expression from the message's
// JSON body and writes it under a new target key, discarding every field
// not named by a mapping. Grounded on
// fiddler::modules::processors::transform::mod.rs's Transform{mappings}
// driver in the original, substituting go-jmespath for the Rust jmespath
// crate.
package transform

import (
	"context"
	"encoding/json"

	"github.com/jmespath/go-jmespath"
	"github.com/pkg/errors"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{
	"type": "object",
	"required": ["mappings"],
	"properties": {
		"label": {"type": "string"},
		"mappings": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["source", "target"],
				"properties": {
					"source": {"type": "string"},
					"target": {"type": "string"}
				}
			}
		}
	},
	"additionalProperties": false
}`

// Mapping extracts Source from the incoming JSON body and writes it under
// Target in the outgoing body.
type Mapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Config describes a transform processor's field mappings.
type Config struct {
	Mappings []Mapping `json:"mappings"`
}

// Driver applies Mappings to each message's JSON body, replacing it with a
// new object containing only the mapped fields.
type Driver struct {
	mappings []Mapping
}

// New returns a Driver for mappings, pre-compiling every source
// expression once so a malformed one fails at construction time.
func New(mappings []Mapping) (*Driver, error) {
	for _, m := range mappings {
		if _, err := jmespath.Compile(m.Source); err != nil {
			return nil, errors.Wrapf(err, "compile mapping %s -> %s", m.Source, m.Target)
		}
	}
	return &Driver{mappings: mappings}, nil
}

// Process implements fiddler.Processor.
func (d *Driver) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	var data any
	if err := json.Unmarshal(msg.Bytes, &data); err != nil {
		return nil, errors.Wrap(err, "transform: invalid json")
	}

	results := make(map[string]any, len(d.mappings))
	for _, m := range d.mappings {
		result, err := jmespath.Search(m.Source, data)
		if err != nil {
			return nil, errors.Wrapf(err, "transform: evaluate %s", m.Source)
		}
		results[m.Target] = result
	}

	out, err := json.Marshal(results)
	if err != nil {
		return nil, errors.Wrap(err, "transform: marshal result")
	}

	next := fiddler.NewMessage(out)
	for k, v := range msg.Metadata {
		next.Metadata[k] = v
	}
	return []*fiddler.Message{next}, nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error { return nil }

// Register adds this driver under the name "transform" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindProcessor, "transform", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "transform config")
			}
			return New(cfg.Mappings)
		})
}
