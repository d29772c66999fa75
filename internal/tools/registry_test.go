package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "weather-agent/internal/common/errors"
)

func placeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"place": map[string]interface{}{"type": "string", "minLength": 1},
		},
		"required": []interface{}{"place"},
	}
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes the place argument",
		InputSchema: placeSchema(),
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args["place"], nil
		},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(echoTool("lookup")))
	err := registry.Register(echoTool("lookup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRejectsIncompleteTools(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.Register(Tool{Name: "", Execute: echoTool("x").Execute}))
	assert.Error(t, registry.Register(Tool{Name: "no-exec"}))
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(echoTool("charlie")))
	require.NoError(t, registry.Register(echoTool("alpha")))
	require.NoError(t, registry.Register(echoTool("bravo")))

	descriptors := registry.List()
	require.Len(t, descriptors, 3)
	assert.Equal(t, "charlie", descriptors[0].Name)
	assert.Equal(t, "alpha", descriptors[1].Name)
	assert.Equal(t, "bravo", descriptors[2].Name)
}

func TestInvokeExecutesValidArguments(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(echoTool("lookup")))

	result, err := registry.Invoke(context.Background(), "lookup", map[string]interface{}{"place": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Paris", result)
}

func TestInvokeUnknownToolIsValidationError(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeToolValidation))
}

func TestInvokeSchemaViolationNeverReachesCallable(t *testing.T) {
	registry := NewRegistry()
	called := false
	tool := echoTool("lookup")
	tool.Execute = func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		called = true
		return nil, nil
	}
	require.NoError(t, registry.Register(tool))

	_, err := registry.Invoke(context.Background(), "lookup", map[string]interface{}{"place": 42})
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeToolValidation))
	assert.False(t, called)

	_, err = registry.Invoke(context.Background(), "lookup", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeToolValidation))
	assert.False(t, called)
}

func TestInvokePropagatesExecutionErrors(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("downstream failed")
	tool := echoTool("lookup")
	tool.Execute = func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return nil, boom
	}
	require.NoError(t, registry.Register(tool))

	_, err := registry.Invoke(context.Background(), "lookup", map[string]interface{}{"place": "Paris"})
	require.ErrorIs(t, err, boom)
	assert.False(t, commonerrors.IsCode(err, commonerrors.ErrCodeToolValidation))
}

func TestInvokeNilSchemaSkipsValidation(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(Tool{
		Name:        "free-form",
		Description: "accepts anything",
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return len(args), nil
		},
	}))

	result, err := registry.Invoke(context.Background(), "free-form", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
}
