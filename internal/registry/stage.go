package registry

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/rc1405/fiddler-sub000"
)

// StageConfig is a single resolved stage slot: an optional label, the
// plugin's kind-qualified name, and its already-validated config subtree
// as a YAML node (kept around so it can be re-marshaled to JSON for the
// factory). Mirrors the teacher's tracer.Config{Type, Plugin} shape,
// generalized across every stage kind and carrying a label field the
// tracer config does not need.
type StageConfig struct {
	Label      string
	PluginName string
	PluginYAML yaml.Node
}

// ResolveStage parses a stage's YAML subtree (input/output/one processor
// entry), requiring exactly one non-"label" key, validates that key
// against the registry entry for kind (falling back to fallback when kind
// itself is unregistered, per spec.md's Input->InputBatch /
// Output->OutputBatch rule), and returns the resolved StageConfig plus the
// kind that actually matched.
func ResolveStage(reg *Registry, node *yaml.Node, kind Kind, fallback Kind) (StageConfig, Kind, error) {
	if node.Kind != yaml.MappingNode {
		return StageConfig{}, "", errors.Wrap(fiddler.ErrConfigFailedValidation, "stage must be a mapping")
	}

	var cfg StageConfig
	var pluginKeys []string
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		if key == "label" {
			cfg.Label = val.Value
			continue
		}
		pluginKeys = append(pluginKeys, key)
		cfg.PluginName = key
		cfg.PluginYAML = *val
	}

	if len(pluginKeys) != 1 {
		return StageConfig{}, "", errors.Wrapf(fiddler.ErrMultiplePluginKeys, "got %d plugin keys: %v", len(pluginKeys), pluginKeys)
	}

	matched := kind
	if !reg.Has(kind, cfg.PluginName) {
		if fallback != "" && reg.Has(fallback, cfg.PluginName) {
			matched = fallback
		} else {
			return StageConfig{}, "", errors.Wrapf(fiddler.ErrConfigurationNotFound, "%s", cfg.PluginName)
		}
	}

	asJSON, err := yamlNodeToJSON(&cfg.PluginYAML)
	if err != nil {
		return StageConfig{}, "", errors.Wrapf(fiddler.ErrConfigFailedValidation, "%s: %v", cfg.PluginName, err)
	}
	if err := reg.Validate(matched, cfg.PluginName, asJSON); err != nil {
		return StageConfig{}, "", err
	}

	return cfg, matched, nil
}

// JSON re-serializes the resolved plugin config subtree as JSON, the form
// Factory functions and Registry.Validate consume.
func (s StageConfig) JSON() ([]byte, error) {
	return yamlNodeToJSON(&s.PluginYAML)
}

func yamlNodeToJSON(node *yaml.Node) ([]byte, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	v = normalizeYAML(v)
	return json.Marshal(v)
}

// normalizeYAML converts map[string]interface{} produced by yaml.v3's
// Decode (which may yield map[string]any already, but nested mapping
// nodes decoded via `any` surface as map[string]interface{} too) into a
// form encoding/json can marshal directly. yaml.v3 already decodes string
// keys by default, so this mostly guards against unexpected types like
// map[interface{}]interface{} from older-style data.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
