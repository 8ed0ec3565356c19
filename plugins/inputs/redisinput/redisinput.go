// Package redisinput implements an input driver backed by a Redis list,
// popping one element at a time with BLPop. Styled after
// AltairaLabs-PromptKit's RedisStore (redis.NewClient construction from a
// flat redis.Options struct) and grounded on
// fiddler::modules::inputs::redis::mod.rs's key-as-queue-name contract in
// the original.
package redisinput

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{
	"type": "object",
	"required": ["address", "key"],
	"properties": {
		"address":  {"type": "string"},
		"password": {"type": "string"},
		"db":       {"type": "integer"},
		"key":      {"type": "string"},
		"timeout_seconds": {"type": "integer"}
	},
	"additionalProperties": false
}`

// Config describes a redisinput driver's connection and queue.
type Config struct {
	Address        string `json:"address"`
	Password       string `json:"password"`
	DB             int    `json:"db"`
	Key            string `json:"key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Driver pops one message at a time off Config.Key with BLPop.
type Driver struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// New returns a Driver against an already-constructed client.
func New(client *redis.Client, key string, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Driver{client: client, key: key, timeout: timeout}
}

// Read implements fiddler.Input. A BLPop timeout (an empty queue) reports
// ErrNoInputToReturn so the input worker backs off and retries rather than
// treating it as end of input.
func (d *Driver) Read(ctx context.Context) (*fiddler.Message, fiddler.CallbackChan, error) {
	res, err := d.client.BLPop(ctx, d.timeout, d.key).Result()
	if err == redis.Nil {
		return nil, nil, fiddler.ErrNoInputToReturn
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fiddler.ErrEndOfInput
		}
		return nil, nil, errors.Wrap(err, "blpop")
	}
	if len(res) != 2 {
		return nil, nil, fiddler.ErrNoInputToReturn
	}

	cb := make(fiddler.CallbackChan, 1)
	return fiddler.NewMessage([]byte(res[1])), cb, nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error {
	return d.client.Close()
}

// Register adds this driver under the name "redis" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindInput, "redis", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "redisinput config")
			}
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Address,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
			return New(client, cfg.Key, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
		})
}
