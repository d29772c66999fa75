// Package tools holds the agent's callable tool records and the registry
// that validates and dispatches invocations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "weather-agent/internal/common/errors"
	"weather-agent/internal/common/metrics"
)

// ExecuteFunc is the callable behind a tool. Arguments have already been
// validated against the tool's input schema when it runs.
type ExecuteFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool is an immutable record describing one capability: a name, a
// human-readable description, a JSON schema for its arguments, and the
// closure that executes it.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Execute     ExecuteFunc
}

// Descriptor is the read-only listing shape for a registered tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to tools. Registration happens once at startup;
// the registry is treated as immutable afterwards, so lookups need no lock.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names and incomplete records are rejected.
func (r *Registry) Register(tool Tool) error {
	if strings.TrimSpace(tool.Name) == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s is already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		descriptors = append(descriptors, Descriptor{Name: tool.Name, Description: tool.Description})
	}
	return descriptors
}

// Invoke validates args against the tool's input schema and then executes
// it. Unknown tool names and schema violations both surface as
// TOOL_VALIDATION_ERROR so callers can tell bad requests apart from
// downstream failures.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, ok := r.tools[name]
	if !ok {
		metrics.ToolInvocations.WithLabelValues(name, "unknown").Inc()
		return nil, commonerrors.NewToolValidationError(name, "unknown tool")
	}

	if err := r.validateArgs(tool, args); err != nil {
		metrics.ToolInvocations.WithLabelValues(name, "invalid").Inc()
		return nil, err
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		metrics.ToolInvocations.WithLabelValues(name, "error").Inc()
		return nil, err
	}

	metrics.ToolInvocations.WithLabelValues(name, "ok").Inc()
	return result, nil
}

func (r *Registry) validateArgs(tool Tool, args map[string]interface{}) error {
	if tool.InputSchema == nil {
		return nil
	}

	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return commonerrors.NewToolValidationError(tool.Name, fmt.Sprintf("invalid input schema: %v", err))
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return commonerrors.NewToolValidationError(tool.Name, fmt.Sprintf("schema validation: %v", err))
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			details = append(details, violation.String())
		}
		return commonerrors.NewToolValidationError(tool.Name, strings.Join(details, "; "))
	}

	return nil
}
