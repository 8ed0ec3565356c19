package transform

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

func TestDriver_SimpleFieldMapping(t *testing.T) {
	d, err := New([]Mapping{
		{Source: "name", Target: "user_name"},
		{Source: "age", Target: "user_age"},
	})
	require.NoError(t, err)

	msg := fiddler.NewMessage([]byte(`{"name": "Alice", "age": 30, "city": "NYC"}`))
	out, err := d.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, out, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out[0].Bytes, &got))
	assert.Equal(t, "Alice", got["user_name"])
	assert.Equal(t, float64(30), got["user_age"])
	_, hasCity := got["city"]
	assert.False(t, hasCity)
}

func TestDriver_NestedFieldExtraction(t *testing.T) {
	d, err := New([]Mapping{
		{Source: "user.profile.email", Target: "email"},
	})
	require.NoError(t, err)

	msg := fiddler.NewMessage([]byte(`{"user": {"profile": {"email": "bob@example.com"}}}`))
	out, err := d.Process(context.Background(), msg)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out[0].Bytes, &got))
	assert.Equal(t, "bob@example.com", got["email"])
}

func TestNew_RejectsInvalidSource(t *testing.T) {
	_, err := New([]Mapping{{Source: "(((", Target: "x"}})
	assert.Error(t, err)
}

func TestRegister_AddsTransform(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Register(reg))
	assert.True(t, reg.Has(registry.KindProcessor, "transform"))
}
