// Package tools defines the domain tools exposed to the assistant.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jobpilot/assistant-api/internal/llm"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/pkg/metrics"
)

// ErrNotFound is returned by Get when the model requests a tool name
// that was never declared. This signals schema drift and is fatal to
// the turn, unlike a tool execution failure.
var ErrNotFound = errors.New("tool not found")

// Tool is one named, schema-validated callable. Execute never panics
// and never returns a Go error: every failure is serialized into the
// observation so the model can react to it.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
	Execute    func(ctx context.Context, args map[string]any) string
}

// Run executes the tool and records the outcome.
func (t *Tool) Run(ctx context.Context, args map[string]any) string {
	out := t.Execute(ctx, args)
	metrics.RecordToolExecution(t.Name, resultSucceeded(out))
	return out
}

// Registry holds the fixed, ordered tool set for one user.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry builds the tool set bound to the given user identity.
// Every tool closes over userID; the model can never reach another
// user's records.
func NewRegistry(st *store.Store, userID string) *Registry {
	r := &Registry{byName: make(map[string]*Tool)}

	r.register(newAddContactTool(st, userID))
	r.register(newListContactsTool(st, userID))
	r.register(newAddCompanyTool(st, userID))
	r.register(newListCompaniesTool(st, userID))
	r.register(newAddApplicationTool(st, userID))
	r.register(newListApplicationsTool(st, userID))
	r.register(newUpdateApplicationTool(st, userID))

	return r
}

func (r *Registry) register(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// All returns the tools in declaration order.
func (r *Registry) All() []*Tool {
	return r.tools
}

// Definitions returns the model-facing tool declarations.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// success serializes a successful observation. extra keys are merged
// next to success and message.
func success(message string, extra map[string]any) string {
	payload := map[string]any{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		payload[k] = v
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// failure serializes a failed observation.
func failure(format string, args ...any) string {
	data, _ := json.Marshal(map[string]any{
		"success": false,
		"message": fmt.Sprintf(format, args...),
	})
	return string(data)
}

// decodeArgs coerces the model's argument map into a typed args struct
// through a JSON round trip.
func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func resultSucceeded(observation string) bool {
	var parsed struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal([]byte(observation), &parsed); err != nil {
		return false
	}
	return parsed.Success
}

// schema builds a JSON Schema object node.
func schema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
