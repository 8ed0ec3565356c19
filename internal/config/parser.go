package config

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

// Parse runs the full C2 pipeline: template expansion, YAML parse,
// per-stage plugin resolution, and schema validation, returning a
// ParsedConfig ready for Runtime setters to adjust before Run.
func Parse(reg *registry.Registry, raw string) (ParsedConfig, error) {
	expanded, err := ExpandEnv(raw)
	if err != nil {
		return ParsedConfig{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(expanded), &root); err != nil {
		return ParsedConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "yaml parse: %v", err)
	}
	if len(root.Content) == 0 {
		return ParsedConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "empty document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return ParsedConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "document must be a mapping")
	}

	cfg := NewParsedConfig()

	fields := map[string]*yaml.Node{}
	for i := 0; i < len(doc.Content); i += 2 {
		fields[doc.Content[i].Value] = doc.Content[i+1]
	}

	if n, ok := fields[fieldLabel]; ok {
		cfg.Label = n.Value
	}
	if n, ok := fields[fieldNumThreads]; ok {
		v, err := strconv.Atoi(n.Value)
		if err != nil || v < 1 {
			return ParsedConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "num_threads: %v", n.Value)
		}
		cfg.NumThreads = v
	}
	if n, ok := fields[fieldShutdownDelay]; ok {
		d, err := time.ParseDuration(n.Value)
		if err != nil {
			return ParsedConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "shutdown_delay: %v", err)
		}
		cfg.ShutdownDelay = d
	}
	if n, ok := fields[fieldShutdownTimeout]; ok {
		d, err := time.ParseDuration(n.Value)
		if err != nil {
			return ParsedConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "shutdown_timeout: %v", err)
		}
		cfg.ShutdownTimeout = d
	}
	if n, ok := fields[fieldTests]; ok {
		var tests []any
		if err := n.Decode(&tests); err != nil {
			return ParsedConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "tests: %v", err)
		}
		cfg.Tests = tests
	}

	inputNode, ok := fields[fieldInput]
	if !ok {
		return ParsedConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "missing input")
	}
	stageCfg, kind, err := registry.ResolveStage(reg, inputNode, registry.KindInput, registry.KindInputBatch)
	if err != nil {
		return ParsedConfig{}, errors.Wrap(err, "input")
	}
	cfg.Input, cfg.InputKind = stageCfg, kind

	outputNode, ok := fields[fieldOutput]
	if !ok {
		return ParsedConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "missing output")
	}
	stageCfg, kind, err = registry.ResolveStage(reg, outputNode, registry.KindOutput, registry.KindOutputBatch)
	if err != nil {
		return ParsedConfig{}, errors.Wrap(err, "output")
	}
	cfg.Output, cfg.OutputKind = stageCfg, kind

	if procsNode, ok := fields[fieldProcessors]; ok {
		if procsNode.Kind != yaml.SequenceNode {
			return ParsedConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "processors must be a list")
		}
		for i, item := range procsNode.Content {
			stageCfg, _, err := registry.ResolveStage(reg, item, registry.KindProcessor, "")
			if err != nil {
				return ParsedConfig{}, errors.Wrapf(err, "processors[%d]", i)
			}
			cfg.Processors = append(cfg.Processors, stageCfg)
		}
	}

	if metricsNode, ok := fields[fieldMetrics]; ok {
		mLabel, interval, stageCfg, err := resolveMetrics(reg, metricsNode)
		if err != nil {
			return ParsedConfig{}, errors.Wrap(err, "metrics")
		}
		cfg.HasMetrics = true
		cfg.Metrics = stageCfg
		cfg.MetricsLabel = mLabel
		if interval > 0 {
			cfg.MetricsInterval = interval
		}
	}

	return cfg, nil
}

// resolveMetrics handles the metrics stanza's extra label/interval fields
// alongside its single plugin key, then delegates the plugin resolution
// to registry.ResolveStage.
func resolveMetrics(reg *registry.Registry, node *yaml.Node) (string, int, registry.StageConfig, error) {
	if node.Kind != yaml.MappingNode {
		return "", 0, registry.StageConfig{}, errors.Wrap(fiddler.ErrConfigFailedValidation, "metrics must be a mapping")
	}

	var label string
	var interval int
	stripped := &yaml.Node{Kind: yaml.MappingNode, Tag: node.Tag}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch key {
		case "label":
			label = val.Value
		case "interval":
			v, err := strconv.Atoi(val.Value)
			if err != nil {
				return "", 0, registry.StageConfig{}, errors.Wrapf(fiddler.ErrConfigFailedValidation, "interval: %v", val.Value)
			}
			interval = v
		default:
			stripped.Content = append(stripped.Content, node.Content[i], val)
		}
	}

	stageCfg, _, err := registry.ResolveStage(reg, stripped, registry.KindMetrics, "")
	if err != nil {
		return "", 0, registry.StageConfig{}, err
	}
	return label, interval, stageCfg, nil
}
