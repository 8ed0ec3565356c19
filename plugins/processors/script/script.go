// Package script implements the inline-transform processor: it runs a
// snippet of this kernel's embedded scripting language against each
// message, binding "this" to the message bytes and "metadata" to the
// message's metadata dictionary, and takes the post-run value of "this"
// as the replacement message (or messages, if it was set to an array).
// Grounded on fiddler::modules::processors::fiddlerscript::mod.rs's
// FiddlerScriptProcessor in the original, adapted onto this kernel's own
// script package rather than the Rust fiddler_script crate.
package script

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
	scriptlang "github.com/rc1405/fiddler-sub000/internal/script"
	"github.com/rc1405/fiddler-sub000/internal/script/builtins"
)

const schemaJSON = `{
	"type": "object",
	"required": ["code"],
	"properties": {
		"label": {"type": "string"},
		"code":  {"type": "string"}
	},
	"additionalProperties": false
}`

// Config describes a script processor's source code.
type Config struct {
	Code string `json:"code"`
}

// Driver runs Code against every message through a fresh interpreter
// instance, matching the original's "new interpreter per message, clean
// state" comment.
type Driver struct {
	program *scriptlang.Program
	code    string
}

// New parses code once so a malformed script fails at construction time
// rather than on the first message.
func New(code string) (*Driver, error) {
	tokens, err := scriptlang.NewLexer(code).Tokenize()
	if err != nil {
		return nil, errors.Wrap(err, "lex script")
	}
	prog, err := scriptlang.NewParser(tokens).Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parse script")
	}
	return &Driver{program: prog, code: code}, nil
}

// Process implements fiddler.Processor.
func (d *Driver) Process(ctx context.Context, msg *fiddler.Message) ([]*fiddler.Message, error) {
	interp := scriptlang.NewInterpreter(builtins.All())
	interp.SetVariable("this", scriptlang.Bytes(msg.Bytes))
	interp.SetVariable("metadata", metadataToValue(msg.Metadata))

	if _, err := interp.Run(d.program); err != nil {
		return nil, errors.Wrap(err, "script error")
	}

	result, ok := interp.GetVariable("this")
	if !ok {
		return nil, errors.New("script: 'this' not found after execution")
	}

	if result.Kind == scriptlang.KindArray {
		out := make([]*fiddler.Message, len(result.Array))
		for i, v := range result.Array {
			out[i] = newMessageFromValue(v, msg.Metadata)
		}
		return out, nil
	}
	return []*fiddler.Message{newMessageFromValue(result, msg.Metadata)}, nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error { return nil }

func newMessageFromValue(v scriptlang.Value, metadata map[string]any) *fiddler.Message {
	m := fiddler.NewMessage(valueToBytes(v))
	for k, val := range metadata {
		m.Metadata[k] = val
	}
	return m
}

func valueToBytes(v scriptlang.Value) []byte {
	switch v.Kind {
	case scriptlang.KindBytes:
		return v.Bytes
	case scriptlang.KindString:
		return []byte(v.Str)
	default:
		return []byte(v.Display())
	}
}

func metadataToValue(metadata map[string]any) scriptlang.Value {
	d := scriptlang.NewOrderedDict()
	for k, v := range metadata {
		val := anyToValue(v)
		d.Set(k, &val)
	}
	return scriptlang.Dict(d)
}

func anyToValue(v any) scriptlang.Value {
	switch t := v.(type) {
	case nil:
		return scriptlang.Null()
	case bool:
		return scriptlang.Bool(t)
	case int:
		return scriptlang.Int(int64(t))
	case int64:
		return scriptlang.Int(t)
	case float64:
		if t == float64(int64(t)) {
			return scriptlang.Int(int64(t))
		}
		return scriptlang.Float(t)
	case string:
		return scriptlang.Str(t)
	case []any:
		arr := make([]scriptlang.Value, len(t))
		for i, e := range t {
			arr[i] = anyToValue(e)
		}
		return scriptlang.Array(arr)
	case map[string]any:
		d := scriptlang.NewOrderedDict()
		for k, e := range t {
			val := anyToValue(e)
			d.Set(k, &val)
		}
		return scriptlang.Dict(d)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return scriptlang.Null()
		}
		return scriptlang.Bytes(raw)
	}
}

// Register adds this driver under the name "script" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindProcessor, "script", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "script config")
			}
			return New(cfg.Code)
		})
}
