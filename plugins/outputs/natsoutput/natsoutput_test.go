package natsoutput

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000/internal/registry"
)

func TestRegister_AddsNatsOutput(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(registry.KindOutput, "nats"))
}

func TestRegister_RejectsMissingSubject(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	err := reg.Validate(registry.KindOutput, "nats", []byte(`{"url":"nats://localhost:4222"}`))
	assert.Error(t, err)
}

func TestRegister_ValidatesMinimalConfig(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	err := reg.Validate(registry.KindOutput, "nats", []byte(`{"url":"nats://localhost:4222","subject":"events"}`))
	assert.NoError(t, err)
}
