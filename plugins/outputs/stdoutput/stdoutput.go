// Package stdoutput implements a zero-dependency line-oriented stdout
// sink, the default output half of the smoke-test pipeline. Grounded on
// spec.md's stdio example; styled after stdinput rather than any teacher
// Rust module.
package stdoutput

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{"type":"object","additionalProperties":false}`

// Config is presently empty.
type Config struct{}

// Driver writes one line per message to an underlying writer.
type Driver struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// New returns a Driver writing to w.
func New(w io.Writer) *Driver {
	return &Driver{w: bufio.NewWriter(w)}
}

// Write implements fiddler.Output.
func (d *Driver) Write(ctx context.Context, msg *fiddler.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.w.Write(msg.Bytes); err != nil {
		return err
	}
	if err := d.w.WriteByte('\n'); err != nil {
		return err
	}
	return d.w.Flush()
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Flush()
}

// Register adds this driver under the name "stdout" to reg. Registered
// factories always target os.Stdout; New is exposed separately for tests
// that want to capture output.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindOutput, "stdout", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, err
			}
			return New(os.Stdout), nil
		})
}
