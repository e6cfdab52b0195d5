// Package tools holds the tool registry the agent dispatches to, plus the
// read-only workspace tools that ship with byom.
//
// A Registry is both the tool executor and the schema source: List returns
// the declarations sent to the model, Invoke runs one call. Invoke never
// panics through to the caller and never returns an error; every failure is
// a failed model.ToolResult.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"byom/config"
	"byom/mcp"
	"byom/model"
	"byom/toolcall"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler executes one tool call.
type Handler = model.ToolHandler

type registeredTool struct {
	tool    mcptypes.Tool
	handler Handler
	schema  *jsonschema.Schema
}

// Registry is a concurrency-safe set of tools kept in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*registeredTool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register adds or replaces a tool. The tool's input schema is compiled so
// arguments can be checked before dispatch.
func (r *Registry) Register(tool mcptypes.Tool, handler Handler) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is required", tool.Name)
	}

	schema, err := toolcall.CompileSchema(tool.Name, mcp.SchemaJSON(tool))
	if err != nil {
		return fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = &registeredTool{tool: tool, handler: handler, schema: schema}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Tools] Registered tool %s", tool.Name)
	}
	return nil
}

// Unregister removes a tool. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns the tool declarations in registration order.
func (r *Registry) List() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name].tool)
	}
	return list
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Filter returns a new registry holding only the allowed tools that exist
// here. An empty allow list copies everything.
func (r *Registry) Filter(allowed []string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[name] = true
	}

	filtered := NewRegistry()
	for _, name := range r.order {
		if len(allowed) > 0 && !keep[name] {
			continue
		}
		filtered.order = append(filtered.order, name)
		filtered.tools[name] = r.tools[name]
	}
	return filtered
}

// Invoke runs the named tool. Unknown tools, schema violations, handler
// panics and cancellation all produce a failed result.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, workDir string) (result model.ToolResult) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return model.ErrorResult(fmt.Sprintf("unknown tool: %s (available: %s)", name, strings.Join(r.sortedNames(), ", ")), "")
	}
	if err := ctx.Err(); err != nil {
		return model.ErrorResult(fmt.Sprintf("tool %s not run: %v", name, err), "")
	}
	if args == nil {
		args = map[string]any{}
	}

	if problems := toolcall.ValidateArguments(entry.schema, args); len(problems) > 0 {
		return model.ErrorResult(fmt.Sprintf("invalid arguments for %s: %s", name, strings.Join(problems, "; ")), "")
	}

	defer func() {
		if p := recover(); p != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tools] Tool %s panicked: %v\n%s", name, p, debug.Stack())
			}
			result = model.ErrorResult(fmt.Sprintf("tool %s failed: %v", name, p), "")
		}
	}()

	result = entry.handler(ctx, args, workDir)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Tools] %s success=%v output=%d bytes", name, result.Success, len(result.Output))
	}
	return result
}

func (r *Registry) sortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
