package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000"
	"github.com/rc1405/fiddler-sub000/internal/registry"
)

const objSchema = `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`

func TestRegister_DuplicateNameRejected(t *testing.T) {
	reg := registry.New()
	factory := func(ctx context.Context, _ []byte) (any, error) { return struct{}{}, nil }

	require.NoError(t, reg.Register(registry.KindProcessor, "dup", objSchema, factory))
	err := reg.Register(registry.KindProcessor, "dup", objSchema, factory)
	assert.ErrorIs(t, err, fiddler.ErrDuplicateRegisteredName)
}

func TestRegister_InvalidSchemaRejected(t *testing.T) {
	reg := registry.New()
	err := reg.Register(registry.KindProcessor, "bad", `{not json`, func(ctx context.Context, _ []byte) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, fiddler.ErrInvalidValidationSchema)
}

func TestValidate_UnknownPluginReturnsConfigurationNotFound(t *testing.T) {
	reg := registry.New()
	err := reg.Validate(registry.KindProcessor, "missing", []byte(`{}`))
	assert.ErrorIs(t, err, fiddler.ErrConfigurationNotFound)
}

func TestValidate_EnforcesSchema(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.KindProcessor, "greet", objSchema,
		func(ctx context.Context, _ []byte) (any, error) { return nil, nil }))

	assert.NoError(t, reg.Validate(registry.KindProcessor, "greet", []byte(`{"name":"bob"}`)))

	err := reg.Validate(registry.KindProcessor, "greet", []byte(`{}`))
	assert.ErrorIs(t, err, fiddler.ErrConfigFailedValidation)
}

func TestBuild_InvokesFactoryWithConfig(t *testing.T) {
	reg := registry.New()
	var seen []byte
	require.NoError(t, reg.Register(registry.KindProcessor, "greet", objSchema,
		func(ctx context.Context, config []byte) (any, error) {
			seen = config
			return "built", nil
		}))

	out, err := reg.Build(context.Background(), registry.KindProcessor, "greet", []byte(`{"name":"bob"}`))
	require.NoError(t, err)
	assert.Equal(t, "built", out)
	assert.Equal(t, `{"name":"bob"}`, string(seen))
}

func TestBuild_UnknownPluginReturnsConfigurationNotFound(t *testing.T) {
	reg := registry.New()
	_, err := reg.Build(context.Background(), registry.KindProcessor, "missing", []byte(`{}`))
	assert.ErrorIs(t, err, fiddler.ErrConfigurationNotFound)
}

func TestExportSchemas_GroupsByKind(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.KindProcessor, "greet", objSchema,
		func(ctx context.Context, _ []byte) (any, error) { return nil, nil }))
	require.NoError(t, reg.Register(registry.KindOutput, "sink", objSchema,
		func(ctx context.Context, _ []byte) (any, error) { return nil, nil }))

	schemas := reg.ExportSchemas()
	require.Contains(t, schemas, string(registry.KindProcessor))
	require.Contains(t, schemas, string(registry.KindOutput))
	assert.Equal(t, objSchema, schemas[string(registry.KindProcessor)]["greet"])
}

func TestHas_ReportsRegisteredState(t *testing.T) {
	reg := registry.New()
	assert.False(t, reg.Has(registry.KindProcessor, "greet"))
	require.NoError(t, reg.Register(registry.KindProcessor, "greet", objSchema,
		func(ctx context.Context, _ []byte) (any, error) { return nil, nil }))
	assert.True(t, reg.Has(registry.KindProcessor, "greet"))
}
