// Package stdinput implements a zero-dependency line-oriented stdin
// source, the input half of a minimal smoke-test pipeline. Grounded on spec.md's own stdio
// example and styled after this package's sibling output driver rather
// than any teacher Rust module, since fiddler's demo inputs in the
// original are all feature-gated behind external brokers.
package stdinput

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const schemaJSON = `{"type":"object","additionalProperties":false}`

// Config is presently empty: stdin is always os.Stdin. The type exists so
// Register's factory has a stable unmarshal target if fields are added
// later.
type Config struct{}

// Driver reads newline-delimited input from stdin, one message per line.
type Driver struct {
	mu     sync.Mutex
	reader *bufio.Reader
	closed bool
}

// New returns a Driver reading from os.Stdin.
func New() *Driver {
	return &Driver{reader: bufio.NewReader(os.Stdin)}
}

// Read implements fiddler.Input.
func (d *Driver) Read(ctx context.Context) (*fiddler.Message, fiddler.CallbackChan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, fiddler.ErrEndOfInput
	}

	line, err := d.reader.ReadString('\n')
	if err != nil && len(line) == 0 {
		if err == io.EOF {
			return nil, nil, fiddler.ErrEndOfInput
		}
		return nil, nil, errors.Wrap(fiddler.ErrEndOfInput, err.Error())
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}

	cb := make(fiddler.CallbackChan, 1)
	return fiddler.NewMessage([]byte(line)), cb, nil
}

// Close implements fiddler.Closer.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Register adds this driver under the name "stdin" to reg.
func Register(reg *registry.Registry) error {
	return reg.Register(registry.KindInput, "stdin", schemaJSON,
		func(ctx context.Context, configJSON []byte) (any, error) {
			var cfg Config
			if err := json.Unmarshal(configJSON, &cfg); err != nil {
				return nil, err
			}
			return New(), nil
		})
}
