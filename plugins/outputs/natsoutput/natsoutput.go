// Package natsoutput implements a publish-only output driver over NATS
// core (no JetStream, no request/reply). Styled after
// streamspace-dev-streamspace's events.Subscriber connection-option
// construction (Name, ReconnectWait, MaxReconnects),
// inverted for publishing, and grounded on
// fiddler::modules::outputs::nats::mod.rs's subject-as-sink contract in
// the original.
package natsoutput

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{
	"type": "object",
	"required": ["url", "subject"],
	"properties": {
		"url":     {"type": "string"},
		"subject": {"type": "string"}
	},
	"additionalProperties": false
}`

// Config describes a natsoutput driver's connection and destination subject.
type Config struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// Driver publishes one message at a time to Config.Subject.
type Driver struct {
	conn    *nats.Conn
	subject string
}

// New returns a Driver against an already-connected conn.
func New(conn *nats.Conn, subject string) *Driver {
	return &Driver{conn: conn, subject: subject}
}

// Write implements fiddler.Output. A publish error on a connection NATS
// has given up reconnecting surfaces as an OutputError through the usual
// channel, rather than being treated as fatal to the pipeline.
func (d *Driver) Write(ctx context.Context, msg *fiddler.Message) error {
	if err := d.conn.Publish(d.subject, msg.Bytes); err != nil {
		return errors.Wrap(err, "nats publish")
	}
	return nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error {
	return d.conn.Drain()
}

// Register adds this driver under the name "nats" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindOutput, "nats", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, errors.Wrap(err, "natsoutput config")
			}
			conn, err := nats.Connect(cfg.URL,
				nats.Name("fiddler-output"),
				nats.ReconnectWait(2*time.Second),
				nats.MaxReconnects(10),
			)
			if err != nil {
				return nil, errors.Wrap(err, "nats connect")
			}
			return New(conn, cfg.Subject), nil
		})
}
