// Package filter implements a JMESPath-gated processor: messages whose
// JSON body evaluates the configured condition to true pass through
// unchanged, and false filters the message (an empty result slice,
// surfaced by the runtime as EventFiltered). A non-boolean result is a
// processing error. Grounded on
// fiddler::modules::processors::filter::mod.rs's Filter{condition} driver
// in the original; this package substitutes go-jmespath (as used for
// JSON-path evaluation by AltairaLabs-PromptKit's evals/handlers package)
// for the Rust jmespath crate.
package filter

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
	"required": ["condition"],
	"properties": {
		"label":     {"type": "string"},
		"condition": {"type": "string"}
	},
	"additionalProperties": false
}`

// Config describes a filter processor's JMESPath condition.
type Config struct {
	Condition string `json:"condition"`
}

// Driver evaluates Condition against each message's JSON body.
type Driver struct {
	condition string
}

// New returns a Driver for condition, pre-compiled once so a malformed
// expression fails at construction time rather than on the first message.
func New(condition string) (*Driver, error) {
	if _, err := jmespath.Compile(condition); err != nil {
		return nil, errors.Wrap(err, "compile condition")
	}
	return &Driver{condition: condition}, nil
}

// Process implements fiddler.Processor.
func (d *Driver) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	var data any
	if err := json.Unmarshal(msg.Bytes, &data); err != nil {
		return nil, errors.Wrap(err, "filter: invalid json")
	}

	result, err := jmespath.Search(d.condition, data)
	if err != nil {
		return nil, errors.Wrap(err, "filter: evaluate condition")
	}

	keep, ok := result.(bool)
	if !ok {
		return nil, errors.Errorf("filter: condition %q did not return a boolean, got %T", d.condition, result)
	}
	if !keep {
		return nil, nil
	}
	return []*fiddler.Message{msg}, nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error { return nil }

// Register adds this driver under the name "filter" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindProcessor, "filter", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "filter config")
			}
			return New(cfg.Condition)
		})
}
